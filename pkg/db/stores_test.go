package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mahaj/lionsphere/pkg/chat"
	"github.com/mahaj/lionsphere/pkg/notification"
)

var (
	_ chat.Store         = (*ChatStore)(nil)
	_ notification.Store = (*NotificationStore)(nil)
)

func TestSchemaIsIdempotent(t *testing.T) {
	for _, stmt := range tables {
		assert.True(t, strings.Contains(stmt, "IF NOT EXISTS"), stmt)
	}
}

func TestCountersLiveInTheirOwnTable(t *testing.T) {
	// Scylla rejects tables mixing counter and regular columns.
	for _, stmt := range tables {
		if strings.Contains(stmt, " counter") {
			assert.Contains(t, stmt, "conversation_counters")
		}
	}
}
