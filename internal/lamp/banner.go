package lamp

import (
	"strings"
	"sync"

	"github.com/danmuck/lampd/internal/observability"
)

// Banner is the notification sink: a single shared slot for the active
// user-facing failure message. A new Notify overwrites whatever is
// showing; there is no queue. Auto-dismiss timing belongs to the view
// layer.
type Banner struct {
	mu      sync.RWMutex
	message string
	active  bool
}

func NewBanner() *Banner {
	return &Banner{}
}

func (b *Banner) Notify(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	b.mu.Lock()
	b.message = message
	b.active = true
	b.mu.Unlock()
	observability.RecordBannerNotification()
}

func (b *Banner) Dismiss() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.message = ""
	b.active = false
}

func (b *Banner) Current() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.message, b.active
}
