package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleEvent() OrderConfirmedEvent {
	return OrderConfirmedEvent{
		OrderID:     11,
		Reference:   "ref-1",
		UserID:      7,
		Date:        "2025-07-18",
		SlotLabel:   "13:00-13:10",
		Items:       []EventItem{{Name: "Meal", Quantity: 2}, {Name: "Chai", Quantity: 1}},
		TotalCents:  8500,
		PayLater:    true,
		ConfirmedAt: "2025-07-18T07:30:00Z",
	}
}

func TestTicketLine(t *testing.T) {
	line := TicketLine(sampleEvent())
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "Order ref-1")
	assert.Contains(t, line, "slot=13:00-13:10")
	assert.Contains(t, line, "items=[2x Meal, 1x Chai]")
	assert.Contains(t, line, "total=8500 cents | pay-later")
}

func TestHandleMessage_AppendsTickets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitchen", "orders.log")
	c := NewConsumer("", "orders.confirmed", path, zap.NewNop())

	first, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	second := sampleEvent()
	second.Reference = "ref-2"
	second.PayLater = false
	body, err := json.Marshal(second)
	require.NoError(t, err)

	require.NoError(t, c.HandleMessage(first))
	require.NoError(t, c.HandleMessage(body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "ref-1")
	assert.Contains(t, lines[1], "ref-2")
	assert.True(t, strings.HasSuffix(lines[1], "| paid"))
}

func TestHandleMessage_RejectsBadPayloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.log")
	c := NewConsumer("", "orders.confirmed", path, zap.NewNop())

	assert.Error(t, c.HandleMessage([]byte("{not json")))
	assert.Error(t, c.HandleMessage([]byte(`{"order_id":1}`)))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written for rejected messages")
}
