package eventstream

import (
	"net/url"
	"strconv"
	"strings"

	"pkt.systems/fleetwatch/schema"
)

// connectionURL builds the SSE endpoint URL. Filter parameters come first in
// a fixed order (machine, appType, daemonName, user, level), zero values
// omitted, followed by one stream parameter per subscribed stream in
// subscription order. The query is built by hand because url.Values.Encode
// sorts keys alphabetically and the server relies on parameter order.
func connectionURL(base string, filter schema.EventFilter, streams []schema.StreamName) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	b.WriteString("/sse")
	sep := byte('?')
	param := func(key, value string) {
		b.WriteByte(sep)
		sep = '&'
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}
	if filter.Machine != 0 {
		param("machine", strconv.FormatInt(filter.Machine, 10))
	}
	if filter.AppType != "" {
		param("appType", filter.AppType)
	}
	if filter.DaemonType != "" {
		param("daemonName", filter.DaemonType)
	}
	if filter.User != "" {
		param("user", filter.User)
	}
	if filter.Level != 0 {
		param("level", strconv.FormatInt(filter.Level, 10))
	}
	for _, stream := range streams {
		param("stream", string(stream))
	}
	return b.String()
}
