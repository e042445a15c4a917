// Package notify delivers posture alerts to the user.
//
// The pipeline only decides when an alert or a back-to-normal event is due;
// this package decides how. A Notifier plays a sound and shows a toast, with
// one implementation per backend (desktop commands, ntfy push, the log).
// The Dispatcher sits between the pipeline and a Notifier: it applies the
// notification settings, queues requests, and delivers them on its own
// goroutine so a slow backend never stalls frame processing.
package notify
