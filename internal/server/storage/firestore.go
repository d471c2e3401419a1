package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kamikazebr/sentinel/pkg/models"
)

const (
	firestoreCollection = "sentinel"
	firestoreDocument   = "state"
)

type firestoreState struct {
	Data      string    `firestore:"data"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// FirestorePersister keeps the snapshot JSON in a single Firestore document
type FirestorePersister struct {
	client *firestore.Client
}

// NewFirestorePersister initializes the Firebase app from a service account
// file and opens its Firestore client.
func NewFirestorePersister(ctx context.Context, projectID, credentialsPath string) (*FirestorePersister, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firestore credentials path not set")
	}

	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firestore client: %w", err)
	}

	return &FirestorePersister{client: client}, nil
}

func (p *FirestorePersister) doc() *firestore.DocumentRef {
	return p.client.Collection(firestoreCollection).Doc(firestoreDocument)
}

func (p *FirestorePersister) Load(ctx context.Context) (*models.StateSnapshot, bool, error) {
	snap, err := p.doc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read state document: %w", err)
	}

	var stored firestoreState
	if err := snap.DataTo(&stored); err != nil {
		return nil, false, fmt.Errorf("failed to decode state document: %w", err)
	}

	var snapshot models.StateSnapshot
	if err := json.Unmarshal([]byte(stored.Data), &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to parse state document: %w", err)
	}
	return &snapshot, true, nil
}

func (p *FirestorePersister) Save(ctx context.Context, snapshot *models.StateSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = p.doc().Set(ctx, firestoreState{
		Data:      string(data),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to write state document: %w", err)
	}
	return nil
}

func (p *FirestorePersister) Close() error {
	return p.client.Close()
}
