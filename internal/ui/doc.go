// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks the account-linking flow:
//  1. [ConnectView] : The browser is open at the provider; a spinner waits for the redirect
//  2. [ManualView] : Paste the redirect URL or the bare token by hand
//  3. [ValidatingView] : The received token is being checked against the provider
//  4. [ConnectedView] : The linked account and device summary
//  5. [FailedView] : What went wrong and how to recover
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Authorization outcomes flow through the orchestrator's event channel, so the model never polls shared state.
//
// Keyboard navigation uses vim-style bindings (enter, esc, m, p, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
