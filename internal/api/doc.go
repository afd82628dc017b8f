// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the scribe backend: conversation
// and message endpoints, run control, artifact retrieval, and the per-run SSE
// progress stream.
//
// The wire format tolerates historical schema drift (resource-prefixed id
// fields, status vs to_status, sentinel-encoded actions); all of it is
// normalized here so the rest of the client only ever sees one canonical
// shape.
package api
