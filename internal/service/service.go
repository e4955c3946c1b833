// Package service contains the application services behind the HTTP API.
package service

import (
	"strings"

	"github.com/and161185/findit/internal/notify"
)

// Notifier queues transactional email without blocking the caller.
type Notifier interface {
	Enqueue(e notify.Email)
}

// NopNotifier discards every email.
type NopNotifier struct{}

// Enqueue implements Notifier.
func (NopNotifier) Enqueue(notify.Email) {}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
