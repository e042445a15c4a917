// Package framefeed ingests landmark frames from an external detector.
//
// A detector writes one JSON object per line (serial, file) or per datagram
// (UDP, pcap replay):
//
//	{"ts":"2026-04-02T14:00:00.5Z","face":[{"x":0.5,"y":0.3,"z":-0.02,"visibility":0.99,"presence":0.99}],"pose":[...]}
//
// A Source produces raw lines, a Feed decodes them and hands frames to a
// Sink (the pipeline runner), and a Mux fans the raw lines out to debug
// subscribers such as the /debug/feed-tail stream.
package framefeed
