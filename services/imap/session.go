package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/voicestack/voicestack/config"
	"github.com/voicestack/voicestack/internal/enum"
	errs "github.com/voicestack/voicestack/internal/errors"
	"github.com/voicestack/voicestack/internal/logger"
	"github.com/voicestack/voicestack/internal/retry"
)

type sessionState int

const (
	stateDisconnected sessionState = iota
	stateConnected
	stateSelected
)

// conn is the slice of the IMAP client surface the session needs. The
// concrete *client.Client satisfies it through clientConn; tests supply
// fakes.
type conn interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Create(name string) error
	List(ref, name string, ch chan *imap.MailboxInfo) error
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Copy(seqset *imap.SeqSet, dest string) error
	Store(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Expunge(ch chan uint32) error
	Logout() error
	SetTimeout(d time.Duration)
}

type clientConn struct {
	*client.Client
}

func (c clientConn) SetTimeout(d time.Duration) {
	c.Client.Timeout = d
}

// Session wraps a remote mailbox connection. Message identifiers returned
// by ListMessageIDs are an arena scoped to the connected session: a
// disconnect invalidates all of them.
type Session struct {
	endpoint config.MailboxEndpoint
	log      logger.Logger

	connectExec *retry.Executor
	fetchExec   *retry.Executor
	moveExec    *retry.Executor

	dial func(ctx context.Context) (conn, error)

	conn   conn
	state  sessionState
	folder string

	now func() time.Time
}

// NewSession builds a session for one mailbox endpoint. Connection setup
// gets the full retry budget; fetch and move get a small one, since
// repeated failures there usually indicate a dead connection rather than a
// transient blip.
func NewSession(endpoint config.MailboxEndpoint, policy retry.Policy, log logger.Logger) *Session {
	singleOpPolicy := retry.Policy{
		MaxAttempts:   2,
		InitialDelay:  policy.InitialDelay,
		BackoffFactor: policy.BackoffFactor,
	}
	if policy.MaxAttempts < singleOpPolicy.MaxAttempts {
		singleOpPolicy.MaxAttempts = policy.MaxAttempts
	}

	s := &Session{
		endpoint:    endpoint,
		log:         log,
		connectExec: retry.NewExecutor(policy, log),
		fetchExec:   retry.NewExecutor(singleOpPolicy, log),
		moveExec:    retry.NewExecutor(singleOpPolicy, log),
		now:         time.Now,
	}
	s.dial = s.dialEndpoint
	return s
}

// Connect establishes the transport, upgrades to TLS when the endpoint is
// configured for STARTTLS, and authenticates. Wrapped in the connect retry
// budget.
func (s *Session) Connect(ctx context.Context) error {
	if s.state != stateDisconnected {
		return errs.ErrAlreadyConnected
	}

	err := s.connectExec.Do(ctx, "imap connect", func() error {
		c, err := s.dial(ctx)
		if err != nil {
			return err
		}
		s.conn = c
		return nil
	})
	if err != nil {
		return err
	}

	s.state = stateConnected
	s.log.Infof("Connected to IMAP server %s:%d", s.endpoint.Host, s.endpoint.Port)
	return nil
}

func (s *Session) dialEndpoint(ctx context.Context) (conn, error) {
	serverAddr := fmt.Sprintf("%s:%d", s.endpoint.Host, s.endpoint.Port)

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	tlsConfig := &tls.Config{
		ServerName: s.endpoint.Host,
	}

	var c *client.Client
	var err error

	if s.endpoint.Security == enum.EmailSecuritySSL {
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
		if err == nil {
			err = c.StartTLS(tlsConfig)
			if err != nil {
				c.Logout()
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}

	c.Timeout = 30 * time.Second
	if err := c.Login(s.endpoint.Username, s.endpoint.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("login error: %w", err)
	}
	c.Timeout = 0

	return clientConn{c}, nil
}

// SelectFolder opens a folder for message operations. Idempotent.
func (s *Session) SelectFolder(ctx context.Context, name string) error {
	if s.state == stateDisconnected {
		return errs.ErrNotConnected
	}

	s.conn.SetTimeout(30 * time.Second)
	mbox, err := s.conn.Select(name, false)
	s.conn.SetTimeout(0)
	if err != nil {
		return fmt.Errorf("error selecting folder %s: %w", name, err)
	}

	s.state = stateSelected
	s.folder = name
	s.log.Debugf("Selected folder %s - Messages: %d, Unseen: %d", name, mbox.Messages, mbox.Unseen)
	return nil
}

// CreateFolderIfAbsent creates a folder unless one with the exact same name
// already exists on the server.
func (s *Session) CreateFolderIfAbsent(ctx context.Context, name string) error {
	if s.state == stateDisconnected {
		return errs.ErrNotConnected
	}

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	s.conn.SetTimeout(30 * time.Second)
	go func() {
		done <- s.conn.List("", "*", mailboxes)
	}()

	exists := false
	for m := range mailboxes {
		if m.Name == name {
			exists = true
		}
	}
	s.conn.SetTimeout(0)

	if err := <-done; err != nil {
		return fmt.Errorf("error listing folders: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.conn.Create(name); err != nil {
		return fmt.Errorf("error creating folder %s: %w", name, err)
	}
	s.log.Infof("Created folder %s", name)
	return nil
}

// ListMessageIDs returns the session-scoped identifiers of messages in the
// selected folder. The identifiers must be consumed within this connected
// session.
func (s *Session) ListMessageIDs(ctx context.Context, filter enum.MessageFilter) ([]uint32, error) {
	if s.state != stateSelected {
		return nil, errs.ErrNoFolderSelected
	}

	criteria := imap.NewSearchCriteria()
	if filter == enum.MessageFilterUnseen {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}

	s.conn.SetTimeout(30 * time.Second)
	ids, err := s.conn.Search(criteria)
	s.conn.SetTimeout(0)
	if err != nil {
		return nil, fmt.Errorf("error searching messages: %w", err)
	}
	return ids, nil
}

// FetchMessage returns the full raw RFC-822 bytes of one message. A small
// retry budget applies.
func (s *Session) FetchMessage(ctx context.Context, id uint32) ([]byte, error) {
	if s.state != stateSelected {
		return nil, errs.ErrNoFolderSelected
	}

	var raw []byte
	err := s.fetchExec.Do(ctx, "imap fetch", func() error {
		seqSet := new(imap.SeqSet)
		seqSet.AddNum(id)

		section := &imap.BodySectionName{}
		items := []imap.FetchItem{section.FetchItem()}

		messages := make(chan *imap.Message, 1)
		done := make(chan error, 1)

		s.conn.SetTimeout(60 * time.Second)
		go func() {
			done <- s.conn.Fetch(seqSet, items, messages)
		}()

		raw = nil
		for msg := range messages {
			literal := msg.GetBody(section)
			if literal == nil {
				continue
			}
			data, readErr := io.ReadAll(literal)
			if readErr != nil {
				s.conn.SetTimeout(0)
				<-done
				return fmt.Errorf("error reading message body: %w", readErr)
			}
			raw = data
		}
		s.conn.SetTimeout(0)

		if err := <-done; err != nil {
			return fmt.Errorf("error fetching message %d: %w", id, err)
		}
		if raw == nil {
			return errs.ErrMessageNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// MoveMessage relocates a message to the destination folder as copy, then
// flag-for-deletion, then expunge. Not atomic: a crash between copy and
// expunge leaves the message in both folders, accepted as at-least-once
// duplication rather than exactly-once archival.
func (s *Session) MoveMessage(ctx context.Context, id uint32, destination string) error {
	if s.state != stateSelected {
		return errs.ErrNoFolderSelected
	}

	return s.moveExec.Do(ctx, "imap move", func() error {
		seqSet := new(imap.SeqSet)
		seqSet.AddNum(id)

		if err := s.conn.Copy(seqSet, destination); err != nil {
			return fmt.Errorf("error copying message %d to %s: %w", id, destination, err)
		}

		item := imap.FormatFlagsOp(imap.AddFlags, true)
		flags := []interface{}{imap.DeletedFlag}
		if err := s.conn.Store(seqSet, item, flags, nil); err != nil {
			return fmt.Errorf("error flagging message %d for deletion: %w", id, err)
		}

		if err := s.conn.Expunge(nil); err != nil {
			return fmt.Errorf("error expunging message %d: %w", id, err)
		}
		return nil
	})
}

// PurgeOlderThan deletes every message in the folder dated before the
// retention cutoff, in one batch. Returns the number of purged messages.
func (s *Session) PurgeOlderThan(ctx context.Context, folder string, retentionDays int) (int, error) {
	if s.state == stateDisconnected {
		return 0, errs.ErrNotConnected
	}

	if err := s.SelectFolder(ctx, folder); err != nil {
		return 0, err
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	criteria := imap.NewSearchCriteria()
	criteria.Before = cutoff

	s.conn.SetTimeout(30 * time.Second)
	ids, err := s.conn.Search(criteria)
	s.conn.SetTimeout(0)
	if err != nil {
		return 0, fmt.Errorf("error searching for expired messages: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	seqSet := new(imap.SeqSet)
	for _, id := range ids {
		seqSet.AddNum(id)
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := s.conn.Store(seqSet, item, flags, nil); err != nil {
		return 0, fmt.Errorf("error flagging expired messages: %w", err)
	}
	if err := s.conn.Expunge(nil); err != nil {
		return 0, fmt.Errorf("error expunging expired messages: %w", err)
	}

	s.log.Infof("Purged %d messages older than %d days from %s", len(ids), retentionDays, folder)
	return len(ids), nil
}

// Disconnect logs out and releases the connection. Safe to call in any
// state, including when already disconnected.
func (s *Session) Disconnect() {
	if s.conn != nil {
		s.conn.SetTimeout(5 * time.Second)
		if err := s.conn.Logout(); err != nil {
			s.log.Debugf("Error during logout: %v", err)
		}
		s.conn = nil
	}
	s.state = stateDisconnected
	s.folder = ""
}
