package apperr

var (
	// Domain errors shared by the chat and notification services.
	ErrInvalidUserID           = InvalidArg("user id must be non-empty and must not contain '_'")
	ErrInvalidConversationID   = InvalidArg("invalid conversation id")
	ErrConversationMismatch    = InvalidArg("conversation id does not match participants")
	ErrSelfMessage             = InvalidArg("cannot message yourself")
	ErrEmptyMessage            = InvalidArg("message needs text or an attachment")
	ErrMessageTooLong          = InvalidArg("message text is too long")
	ErrNotParticipant          = Forbidden("not a participant of this conversation")
	ErrNotSender               = Forbidden("only the sender can delete a message")
	ErrMessageNotFound         = NotFound("message not found")
	ErrReplyNotFound           = InvalidArg("reply target not found in conversation")
	ErrUserNotFound            = NotFound("user not found")
	ErrInvalidNotificationType = InvalidArg("unknown notification type")
	ErrNotificationNeedsPost   = InvalidArg("notification type requires a post id")
	ErrNotificationNotFound    = NotFound("notification not found")
)
