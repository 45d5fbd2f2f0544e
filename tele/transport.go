package tele

import (
	"context"
	"fmt"

	"github.com/temoto/uasbridge/log2"
	tele_config "github.com/temoto/uasbridge/tele/config"
)

// Tele transport contract:
// - Init fails only with invalid config, ignores network errors
// - Send* deliver within network timeout or fail; success includes ack from broker
// - application may start without network available
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, c tele_config.Config, willPayload []byte) error
	SendState(payload []byte) bool
	SendEvent(uasID uint8, payload []byte) bool
	Close()
}

func TopicState(stationID int) string { return fmt.Sprintf("gcs%d/s", stationID) }
func TopicEvent(stationID int, uasID uint8) string {
	return fmt.Sprintf("gcs%d/uas%d/e", stationID, uasID)
}
