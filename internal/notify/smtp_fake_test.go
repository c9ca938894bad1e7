package notify

import (
	"net"
	"net/textproto"
	"strings"
	"testing"
)

// fakeSMTP accepts a single session and captures the DATA payload.
type fakeSMTP struct {
	addr string
	data chan string
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	f := &fakeSMTP{addr: ln.Addr().String(), data: make(chan string, 1)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 fake ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				tp.PrintfLine("250-fake")
				tp.PrintfLine("250 HELP")
			case cmd == "DATA":
				tp.PrintfLine("354 go ahead")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				f.data <- strings.Join(lines, "\n")
				tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				tp.PrintfLine("221 bye")
				return
			default:
				tp.PrintfLine("250 OK")
			}
		}
	}()
	return f
}
