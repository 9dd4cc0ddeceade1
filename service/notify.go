package service

import "fleetdash/models"

// Notifier is the fire-and-forget notification collaborator. The
// dashboard only decides when to notify and with which severity.
type Notifier interface {
	Notify(n models.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n models.Notification)

func (f NotifierFunc) Notify(n models.Notification) { f(n) }

// Notifiers fans one notification out to several collaborators.
type Notifiers []Notifier

func (ns Notifiers) Notify(n models.Notification) {
	for _, notifier := range ns {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}
