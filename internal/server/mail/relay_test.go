package mail

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type relayedMessage struct {
	commands []string
	data     string
}

type fakeRelay struct {
	host     string
	port     int
	received chan relayedMessage
}

// startFakeRelay serves a single plain SMTP session and reports what the
// client sent.
func startFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	r := &fakeRelay{host: host, port: port, received: make(chan relayedMessage, 1)}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r.received <- serveSession(conn)
	}()
	return r
}

func serveSession(conn net.Conn) relayedMessage {
	var got relayedMessage
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	reply := func(line string) {
		_, _ = rw.WriteString(line + "\r\n")
		_ = rw.Flush()
	}

	reply("220 relay.test ESMTP")
	for {
		line, err := rw.ReadString('\n')
		if err != nil {
			return got
		}
		line = strings.TrimRight(line, "\r\n")
		got.commands = append(got.commands, line)

		switch verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0]); verb {
		case "EHLO", "HELO":
			reply("250 relay.test")
		case "MAIL", "RCPT":
			reply("250 OK")
		case "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := rw.ReadString('\n')
				if err != nil {
					return got
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			got.data = b.String()
			reply("250 queued")
		case "QUIT":
			reply("221 bye")
			return got
		default:
			reply("502 not implemented")
		}
	}
}
