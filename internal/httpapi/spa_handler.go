// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aleutian-labs/stepseq/internal/engine"
	"github.com/aleutian-labs/stepseq/internal/logging"
)

// crawlerUserAgents is the fixed, case-insensitive list of social-card
// crawlers that get a meta-rewritten shell instead of the plain SPA
// page. Order doesn't matter; membership does.
var crawlerUserAgents = []string{
	"facebookexternalhit",
	"facebot",
	"twitterbot",
	"linkedinbot",
	"discordbot",
	"slackbot",
	"whatsapp",
	"telegrambot",
}

// isCrawlerUA reports whether ua names one of the fixed social
// crawlers, matched as a case-insensitive substring.
func isCrawlerUA(ua string) bool {
	lower := strings.ToLower(ua)
	for _, c := range crawlerUserAgents {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// SPAHandler serves the browser shell at GET /s/*, rewriting it with
// per-session Open Graph/Twitter/JSON-LD metadata when the requester
// is a social-card crawler.
type SPAHandler struct {
	registry *engine.Registry
	log      *logging.Logger
	shell    string
	baseURL  string
}

// NewSPAHandler builds the handler. shellHTML is the built SPA's
// index.html content; baseURL is the public origin used to build
// absolute `og:url`/`og:image` links (e.g. "https://stepseq.example").
func NewSPAHandler(reg *engine.Registry, log *logging.Logger, shellHTML, baseURL string) *SPAHandler {
	return &SPAHandler{registry: reg, log: log, shell: shellHTML, baseURL: strings.TrimRight(baseURL, "/")}
}

// Handle serves GET /s/:id and GET /s/ (no session, shell only).
func (h *SPAHandler) Handle(c *gin.Context) {
	if !isCrawlerUA(c.GetHeader("User-Agent")) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.shell))
		return
	}

	id := strings.TrimPrefix(c.Param("path"), "/")
	if id == "" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.shell))
		return
	}

	sess, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.shell))
			return
		}
		h.log.Error("session lookup for crawler render failed", "session_id", id, "error", err)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.shell))
		return
	}

	snapshot := sess.Snapshot(c.Request.Context())
	name := snapshot.Name
	if name == "" {
		name = "Untitled session"
	}
	trackCount := len(snapshot.State.Tracks)

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.render(id, name, trackCount)))
}

// render composes the crawler-facing shell: the shell document with a
// meta block injected before </head>. Every user-provided field is
// escaped with escapeHTML before interpolation.
func (h *SPAHandler) render(id, name string, trackCount int) string {
	title := escapeHTML(name + " — stepseq")
	description := escapeHTML(fmt.Sprintf("A %d-track collaborative step sequence. Join and jam.", trackCount))
	url := escapeHTML(h.baseURL + "/s/" + id)

	meta := fmt.Sprintf(`
<meta property="og:title" content="%s">
<meta property="og:description" content="%s">
<meta property="og:url" content="%s">
<meta property="og:type" content="website">
<meta name="twitter:card" content="summary">
<meta name="twitter:title" content="%s">
<meta name="twitter:description" content="%s">
<script type="application/ld+json">{"@context":"https://schema.org","@type":"CreativeWork","name":"%s","url":"%s"}</script>
`, title, description, url, title, description, title, url)

	if idx := strings.Index(h.shell, "</head>"); idx != -1 {
		return h.shell[:idx] + meta + h.shell[idx:]
	}
	return h.shell + meta
}

// escapeHTML applies HTML entity escaping in a fixed order: `&` first
// (so later replacements don't double-escape the ampersands they
// introduce), then `"`, `<`, `>`.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
