package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"imgvault/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized":
			lines = append(lines, "hint: verify ADMIN_SECRET matches the server's admin_secret.")
		case "resource_exhausted":
			lines = append(lines, "hint: rate limit reached; wait a minute and retry.")
		case "file_too_large":
			lines = append(lines, "hint: the server's max_file_size is lower than this file.")
		}
		if apiErr.Status == http.StatusBadRequest && apiErr.Message == "invalid image id" {
			lines = append(lines, "hint: image ids are opaque tokens; copy them exactly as returned by the server.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify IMGVAULT_API_URL points to an imgvault server.")
		}
		if apiErr.Status == http.StatusServiceUnavailable {
			lines = append(lines, "hint: the storage backend is unreachable; check `imgvault health`.")
		} else if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase IMGVAULT_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure an imgvault server is running at IMGVAULT_API_URL.",
			"hint: start a server with: imgvault serve",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
