package interfaces

import (
	"context"

	"github.com/voicestack/voicestack/internal/enum"
)

// MailboxSession is a stateful wrapper over one remote mailbox connection.
// Message identifiers are session-scoped: they are valid only for the
// lifetime of the connected session that produced them and must never be
// cached or compared across a disconnect/reconnect boundary.
type MailboxSession interface {
	Connect(ctx context.Context) error
	SelectFolder(ctx context.Context, name string) error
	CreateFolderIfAbsent(ctx context.Context, name string) error
	ListMessageIDs(ctx context.Context, filter enum.MessageFilter) ([]uint32, error)
	FetchMessage(ctx context.Context, id uint32) ([]byte, error)
	// MoveMessage is copy + flag-for-deletion + expunge. It is not atomic:
	// a crash between copy and expunge leaves the message in both folders.
	MoveMessage(ctx context.Context, id uint32, destination string) error
	PurgeOlderThan(ctx context.Context, folder string, retentionDays int) (int, error)
	Disconnect()
}
