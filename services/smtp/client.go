package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/voicestack/voicestack/config"
	"github.com/voicestack/voicestack/internal/enum"
	"github.com/voicestack/voicestack/internal/logger"
	"github.com/voicestack/voicestack/internal/retry"
)

// Client submits messages to one SMTP endpoint. Every Send opens a fresh
// connection and tears it down afterwards; nothing is pooled.
type Client struct {
	endpoint config.SubmissionEndpoint
	log      logger.Logger
	exec     *retry.Executor

	dial func() (*smtp.Client, error)
}

func NewClient(endpoint config.SubmissionEndpoint, policy retry.Policy, log logger.Logger) *Client {
	c := &Client{
		endpoint: endpoint,
		log:      log,
		exec:     retry.NewExecutor(policy, log),
	}
	c.dial = c.dialEndpoint
	return c
}

// dialEndpoint opens the transport according to the configured security
// mode and returns a ready SMTP client, not yet authenticated.
func (c *Client) dialEndpoint() (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.endpoint.Host, c.endpoint.Port)
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	tlsConfig := &tls.Config{ServerName: c.endpoint.Host}

	if c.endpoint.Security == enum.EmailSecuritySSL {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		client, err := smtp.NewClient(conn, c.endpoint.Host)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create SMTP client: %w", err)
		}
		return client, nil
	}

	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	client, err := smtp.NewClient(conn, c.endpoint.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if c.endpoint.Security == enum.EmailSecurityStartTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	return client, nil
}

// session dials and authenticates. Authentication only happens when both
// credentials are configured; unauthenticated relays skip it.
func (c *Client) session() (*smtp.Client, error) {
	client, err := c.dial()
	if err != nil {
		return nil, err
	}

	if c.endpoint.Username != "" && c.endpoint.Password != "" {
		auth := smtp.PlainAuth("", c.endpoint.Username, c.endpoint.Password, c.endpoint.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	return client, nil
}

// TestConnection performs a full connect, handshake and authentication,
// then quits. Used during startup validation only; a transient blip gets
// the same retry budget a send does, so only exhausted retries are fatal.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.exec.Do(ctx, "smtp connection test", func() error {
		client, err := c.session()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Noop(); err != nil {
			return fmt.Errorf("SMTP NOOP failed: %w", err)
		}
		return client.Quit()
	})
}

// Send transmits one raw message, retrying the whole connect-and-send unit
// on failure. The connection is torn down on every path.
func (c *Client) Send(ctx context.Context, from, recipient string, message []byte) error {
	return c.exec.Do(ctx, "smtp send", func() error {
		client, err := c.session()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Mail(from); err != nil {
			return fmt.Errorf("SMTP MAIL command failed: %w", err)
		}
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("SMTP RCPT command failed for %s: %w", recipient, err)
		}

		dataWriter, err := client.Data()
		if err != nil {
			return fmt.Errorf("SMTP DATA command failed: %w", err)
		}
		if _, err := dataWriter.Write(message); err != nil {
			return fmt.Errorf("failed to write message data: %w", err)
		}
		if err := dataWriter.Close(); err != nil {
			return fmt.Errorf("failed to close data writer: %w", err)
		}

		return client.Quit()
	})
}
