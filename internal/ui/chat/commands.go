// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/scribe-tui/internal/api"
	"github.com/jeranaias/scribe-tui/internal/export"
	"github.com/jeranaias/scribe-tui/internal/model"
	"github.com/jeranaias/scribe-tui/internal/report"
	"github.com/jeranaias/scribe-tui/internal/run"
	"github.com/jeranaias/scribe-tui/internal/session"
)

const (
	// requestTimeout bounds one-shot API calls issued from the view.
	requestTimeout = 30 * time.Second

	// reconnectDelay is the pause before resubscribing a dropped event feed.
	reconnectDelay = 2 * time.Second

	// eventBatchMax caps how many buffered events one RunEventsMsg drains.
	eventBatchMax = 64
)

// =============================================================================
// HISTORY AND SEND COMMANDS
// =============================================================================

// loadHistoryCmd fetches the newest message page into the coordinator cache.
func loadHistoryCmd(coord *session.Coordinator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return HistoryLoadedMsg{Err: coord.LoadNewest(ctx)}
	}
}

// loadOlderCmd pages one screen further back into history.
func loadOlderCmd(coord *session.Coordinator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		more, err := coord.LoadOlder(ctx)
		return OlderLoadedMsg{More: more, Err: err}
	}
}

// sendCmd runs one optimistic send to completion. Cache changes surface
// through the coordinator's hooks; this command only reports the outcome.
func sendCmd(coord *session.Coordinator, text string, opts session.SendOptions) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return SendFinishedMsg{Result: coord.Send(ctx, text, opts)}
	}
}

// listConversationsCmd refreshes the conversation list pane data.
func listConversationsCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		convs, err := client.ListConversations(ctx)
		return ConversationsMsg{Conversations: convs, Err: err}
	}
}

// =============================================================================
// RUN COMMANDS
// =============================================================================

// waitForEventsCmd blocks until the SSE feed yields at least one event, then
// drains whatever else is already buffered so the consumer sees a batch.
// A closed events channel reports the stream end with any stream error.
func waitForEventsCmd(runID string, events <-chan model.RunEvent, errs <-chan error) tea.Cmd {
	return func() tea.Msg {
		first, ok := <-events
		if !ok {
			err := <-errs
			var streamErr *api.StreamError
			lastID := int64(0)
			if errors.As(err, &streamErr) {
				lastID = streamErr.LastEventID
			}
			return RunStreamClosedMsg{RunID: runID, LastEventID: lastID, Err: err}
		}

		batch := []model.RunEvent{first}
		for len(batch) < eventBatchMax {
			select {
			case ev, ok := <-events:
				if !ok {
					return RunEventsMsg{RunID: runID, Events: batch}
				}
				batch = append(batch, ev)
			default:
				return RunEventsMsg{RunID: runID, Events: batch}
			}
		}
		return RunEventsMsg{RunID: runID, Events: batch}
	}
}

// handleBatchCmd feeds a drained batch to the run consumer off the UI loop,
// since a terminal event triggers synchronous status/artifact fetches.
func handleBatchCmd(consumer *run.Consumer, events []model.RunEvent) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		consumer.HandleBatch(ctx, events)
		return nil
	}
}

// channelErrorCmd lets the consumer run its throttled fallback poll after the
// event feed dropped.
func channelErrorCmd(consumer *run.Consumer, cause error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		consumer.HandleChannelError(ctx, cause)
		return nil
	}
}

// reconnectTickCmd schedules a resubscribe attempt after the backoff.
func reconnectTickCmd(runID string) tea.Cmd {
	return tea.Tick(reconnectDelay, func(t time.Time) tea.Msg {
		return ReconnectTickMsg{RunID: runID, At: t}
	})
}

// cancelRunCmd asks the server to cancel the active run.
func cancelRunCmd(client *api.Client, runID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return RunCanceledMsg{RunID: runID, Err: client.CancelRun(ctx, runID)}
	}
}

// retryRunCmd asks the server to retry a failed run.
func retryRunCmd(client *api.Client, runID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		rec, err := client.RetryRun(ctx, runID)
		return RunRetriedMsg{Run: rec, Err: err}
	}
}

// =============================================================================
// REPORT COMMANDS
// =============================================================================

// saveReportCmd persists the current report to the local store.
func saveReportCmd(store *report.Store, conversationID string, rep *report.Report) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		return ReportSavedMsg{Err: store.Save(conversationID, rep)}
	}
}

// loadReportCmd restores a previously persisted report for the conversation.
func loadReportCmd(store *report.Store, conversationID string) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		rep, err := store.Load(conversationID)
		if err != nil || rep == nil || rep.IsEmpty() {
			return nil
		}
		return ReportSectionsMsg{Sections: rep.Sections}
	}
}

// clearReportCmd drops the persisted report row after the user clears the
// in-memory report.
func clearReportCmd(store *report.Store, conversationID string) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		return ReportClearedMsg{Err: store.Delete(conversationID)}
	}
}

// exportReportCmd writes the report to disk as markdown.
func exportReportCmd(rep *report.Report, outputDir string) tea.Cmd {
	return func() tea.Msg {
		opts := export.DefaultOptions()
		if outputDir != "" {
			opts.OutputDir = outputDir
		}
		path, err := export.ExportMarkdown(rep, opts)
		return ExportDoneMsg{Path: path, Err: err}
	}
}
