// Package notify defines the contracts between the guard and the
// presentation layer.
//
// The real presentation surface (status bar, selection menus, toasts,
// sounds) lives outside this repository. The guard only needs two
// capabilities from it: asking the user a question (Prompter) and issuing a
// one-off notice (Notifier). Console implementations are provided so the
// daemon is usable standalone and so tests have honest fakes to mirror.
package notify
