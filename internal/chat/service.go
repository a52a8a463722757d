// Package chat exposes the direct-message operations: listing peers with
// unseen counts, opening a conversation, sending and acknowledging.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/courier/internal/apperr"
	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/media"
	"github.com/matheus3301/courier/internal/seen"
	"github.com/matheus3301/courier/internal/store"
	"go.uber.org/zap"
)

// ImageUploader turns a data URI into a stored image URL.
type ImageUploader interface {
	UploadDataURI(ctx context.Context, folder, uri string) (string, error)
}

// Dispatcher pushes committed messages to online receivers.
type Dispatcher interface {
	Dispatch(m *store.Message)
}

// Peers is the sidebar view: every other user plus sparse unseen counts.
type Peers struct {
	Users  []store.User
	Unseen map[string]int
}

// SendInput is the body of a send request.
type SendInput struct {
	Text  string
	Image string
}

// Service coordinates the store, the reconciler and the dispatcher.
type Service struct {
	db         *store.DB
	reconciler *seen.Reconciler
	dispatcher Dispatcher
	uploader   ImageUploader
	bus        *bus.Bus
	logger     *zap.Logger
}

// NewService creates a chat service.
func NewService(db *store.DB, reconciler *seen.Reconciler, dispatcher Dispatcher, uploader ImageUploader, b *bus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         db,
		reconciler: reconciler,
		dispatcher: dispatcher,
		uploader:   uploader,
		bus:        b,
		logger:     logger,
	}
}

// ListPeers returns every user except userID and what userID has not seen yet.
func (s *Service) ListPeers(ctx context.Context, userID string) (*Peers, error) {
	users, err := s.db.ListUsersExcept(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	unseen, err := s.db.UnseenCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unseen counts: %w", err)
	}
	return &Peers{Users: users, Unseen: unseen}, nil
}

// OpenConversation returns the history with peer and marks peer's messages seen.
func (s *Service) OpenConversation(ctx context.Context, userID, peerID string) ([]store.Message, error) {
	return s.reconciler.OpenConversation(ctx, userID, peerID)
}

// Send stores a message from senderID to receiverID and pushes it if the
// receiver is online. Nothing is stored when validation or upload fails.
func (s *Service) Send(ctx context.Context, senderID, receiverID string, in SendInput) (*store.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == "" {
		return nil, apperr.New(apperr.Validation, "Message cannot be empty")
	}
	if receiverID == senderID {
		return nil, apperr.New(apperr.Validation, "Cannot message yourself")
	}
	if _, err := s.db.GetUser(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "User not found", err)
		}
		return nil, fmt.Errorf("get receiver: %w", err)
	}

	var imageURL string
	if in.Image != "" {
		url, err := s.uploader.UploadDataURI(ctx, "messages", in.Image)
		switch {
		case media.IsRejected(err):
			return nil, apperr.Wrap(apperr.Validation, "Invalid image", err)
		case err != nil:
			s.logger.Warn("image upload failed, message not sent",
				zap.String("sender_id", senderID),
				zap.String("receiver_id", receiverID),
				zap.Error(err))
			return nil, apperr.Wrap(apperr.Upload, "Image upload failed", err)
		}
		imageURL = url
	}

	m := &store.Message{SenderID: senderID, ReceiverID: receiverID, Text: text, Image: imageURL}
	if err := s.db.CreateMessage(ctx, m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "User not found", err)
		}
		return nil, fmt.Errorf("create message: %w", err)
	}
	s.bus.Emit(bus.KindMessageCreated, *m)

	// Committed; the push may now fail without consequence.
	s.dispatcher.Dispatch(m)
	return m, nil
}

// MarkSeen acknowledges a single message on behalf of its receiver.
func (s *Service) MarkSeen(ctx context.Context, userID, messageID string) (*store.Message, error) {
	return s.reconciler.Acknowledge(ctx, messageID, userID)
}
