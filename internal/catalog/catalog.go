// Package catalog records ingested books in Firestore: one document per
// source file, keyed off its content hash, advancing through the pipeline
// statuses until COMPLETE or FAILED.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/bookflow/internal/models"
)

// Store is the catalog capability the orchestrator consumes. A nil Store
// disables cataloging entirely.
type Store interface {
	// FindByHash reports whether a book with this content hash already exists.
	FindByHash(ctx context.Context, fileHash string) (found bool, bookID string, err error)
	// Create inserts the initial record and returns the new book ID.
	Create(ctx context.Context, book models.Book) (string, error)
	// UpdateStatus advances the record's status; errDetails accompanies FAILED.
	UpdateStatus(ctx context.Context, bookID, status, errDetails string) error
	// SetMetadata records extracted metadata and final page count.
	SetMetadata(ctx context.Context, bookID string, meta models.BookMetadata, pageCount int) error
}

// FirestoreStore implements Store on one Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a catalog over the given project and collection.
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) FindByHash(ctx context.Context, fileHash string) (bool, string, error) {
	docs, err := s.client.Collection(s.collection).
		Where("fileHash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return false, "", fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return true, docs[0].Ref.ID, nil
	}
	return false, "", nil
}

func (s *FirestoreStore) Create(ctx context.Context, book models.Book) (string, error) {
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}
	docRef, _, err := s.client.Collection(s.collection).Add(ctx, book)
	if err != nil {
		return "", fmt.Errorf("failed to create book record: %w", err)
	}
	return docRef.ID, nil
}

func (s *FirestoreStore) UpdateStatus(ctx context.Context, bookID, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := s.client.Collection(s.collection).Doc(bookID).Update(ctx, updates)
	return err
}

func (s *FirestoreStore) SetMetadata(ctx context.Context, bookID string, meta models.BookMetadata, pageCount int) error {
	_, err := s.client.Collection(s.collection).Doc(bookID).Update(ctx, []firestore.Update{
		{Path: "title", Value: meta.Title},
		{Path: "author", Value: meta.Author},
		{Path: "pageCount", Value: pageCount},
	})
	return err
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// FileHash computes the sha256 content hash used for duplicate detection.
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
