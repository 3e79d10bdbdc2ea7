package comfyui

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewClientID returns a fresh correlation token of the form client_<unix-ms>_<9 chars>.
func NewClientID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]

	return fmt.Sprintf("client_%d_%s", time.Now().UnixMilli(), suffix)
}
