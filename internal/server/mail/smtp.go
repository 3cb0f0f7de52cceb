package mail

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// implicitTLSPort is the submissions port, where TLS starts before the
// SMTP greeting.
const implicitTLSPort = 465

// transport holds what every SMTP conversation with the relay shares.
type transport struct {
	addr        string
	host        string
	auth        smtp.Auth
	tlsConfig   *tls.Config
	implicitTLS bool
}

func newTransport(host string, port int, user, password string) *transport {
	t := &transport{
		addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		host:        host,
		tlsConfig:   &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
		implicitTLS: port == implicitTLSPort,
	}
	if user != "" {
		t.auth = smtp.PlainAuth("", user, password, host)
	}
	return t
}

// send runs one complete SMTP conversation. The connection deadline follows
// ctx, and cancelling ctx unblocks any pending read or write.
func (t *transport) send(ctx context.Context, from string, to []string, msg io.WriterTo) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if t.implicitTLS {
		conn = tls.Client(conn, t.tlsConfig)
	}

	c, err := smtp.NewClient(conn, t.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if !t.implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(t.tlsConfig); err != nil {
				return err
			}
		}
	}
	if t.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(t.auth); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := msg.WriteTo(w); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
