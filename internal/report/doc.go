// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package report holds the structured report model, the deterministic parser
// that turns freeform generated text into citation-aware sections, and the
// local per-conversation report store.
//
// The parser is a pure, total function: any input, including empty or
// binary-looking text, degrades to fewer (or zero) sections rather than an
// error.
package report
