// Package mongo provides a MongoDB implementation of the marketplace store,
// persisting capability manifests for durability across restarts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	"github.com/mandubian/ccos-sub004/ccos/marketplace/store"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Store is a MongoDB implementation of store.Store.
type Store struct {
	collection *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New creates a MongoDB-backed marketplace store using the given collection.
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

type providerDocument struct {
	Kind       string `bson:"kind"`
	LocalName  string `bson:"local_name,omitempty"`
	ServerURL  string `bson:"server_url,omitempty"`
	ToolName   string `bson:"tool_name,omitempty"`
	TimeoutMS  int    `bson:"timeout_ms,omitempty"`
	Endpoint   string `bson:"endpoint,omitempty"`
	Method     string `bson:"method,omitempty"`
	AuthEnvVar string `bson:"auth_env_var,omitempty"`
	ModuleURL  string `bson:"module_url,omitempty"`
	PlanRef    string `bson:"plan_ref,omitempty"`
}

type retryDocument struct {
	MaxAttempts int `bson:"max_attempts"`
	BackoffMS   int `bson:"backoff_ms"`
}

type provenanceDocument struct {
	Source       string    `bson:"source,omitempty"`
	ContentHash  string    `bson:"content_hash,omitempty"`
	CustodyChain []string  `bson:"custody_chain,omitempty"`
	RegisteredAt time.Time `bson:"registered_at,omitempty"`
}

type manifestDocument struct {
	ID           string              `bson:"_id"`
	Name         string              `bson:"name,omitempty"`
	Description  string              `bson:"description,omitempty"`
	Provider     providerDocument    `bson:"provider"`
	Version      string              `bson:"version,omitempty"`
	InputSchema  map[string]any      `bson:"input_schema,omitempty"`
	OutputSchema map[string]any      `bson:"output_schema,omitempty"`
	Effects      []string            `bson:"effects,omitempty"`
	Permissions  []string            `bson:"permissions,omitempty"`
	Provenance   provenanceDocument  `bson:"provenance"`
	Retry        *retryDocument      `bson:"retry,omitempty"`
	TrustScore   float64             `bson:"trust_score"`
	Cost         float64             `bson:"cost"`
	Metadata     map[string]any      `bson:"metadata,omitempty"`
}

func (s *Store) SaveManifest(ctx context.Context, m *marketplace.Manifest) error {
	doc := toDocument(m)
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": m.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("mongodb save manifest %q: %w", m.ID, err)
	}
	return nil
}

func (s *Store) GetManifest(ctx context.Context, id string) (*marketplace.Manifest, error) {
	var doc manifestDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb get manifest %q: %w", id, err)
	}
	return fromDocument(&doc), nil
}

func (s *Store) ListManifests(ctx context.Context) ([]*marketplace.Manifest, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongodb list manifests: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	var docs []manifestDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb list manifests decode: %w", err)
	}
	out := make([]*marketplace.Manifest, len(docs))
	for i, doc := range docs {
		out[i] = fromDocument(&doc)
	}
	return out, nil
}

func toDocument(m *marketplace.Manifest) *manifestDocument {
	var retry *retryDocument
	if m.Retry != nil {
		retry = &retryDocument{MaxAttempts: m.Retry.MaxAttempts, BackoffMS: m.Retry.BackoffMS}
	}
	var inputSchema, outputSchema map[string]any
	if m.InputSchema != nil {
		inputSchema = m.InputSchema.ToJSONSchema()
	}
	if m.OutputSchema != nil {
		outputSchema = m.OutputSchema.ToJSONSchema()
	}
	return &manifestDocument{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Provider: providerDocument{
			Kind:       string(m.Provider.Kind),
			LocalName:  m.Provider.LocalName,
			ServerURL:  m.Provider.ServerURL,
			ToolName:   m.Provider.ToolName,
			TimeoutMS:  m.Provider.TimeoutMS,
			Endpoint:   m.Provider.Endpoint,
			Method:     m.Provider.Method,
			AuthEnvVar: m.Provider.AuthEnvVar,
			ModuleURL:  m.Provider.ModuleURL,
			PlanRef:    m.Provider.PlanRef,
		},
		Version:      m.Version,
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
		Effects:      marketplace.SortedEffects(m.Effects),
		Permissions:  m.Permissions,
		Provenance: provenanceDocument{
			Source:       m.Provenance.Source,
			ContentHash:  m.Provenance.ContentHash,
			CustodyChain: m.Provenance.CustodyChain,
			RegisteredAt: m.Provenance.RegisteredAt,
		},
		Retry:      retry,
		TrustScore: m.TrustScore,
		Cost:       m.Cost,
		Metadata:   m.Metadata,
	}
}

func fromDocument(doc *manifestDocument) *marketplace.Manifest {
	var retry *marketplace.RetryPolicy
	if doc.Retry != nil {
		retry = &marketplace.RetryPolicy{MaxAttempts: doc.Retry.MaxAttempts, BackoffMS: doc.Retry.BackoffMS}
	}
	var inputSchema, outputSchema *value.Type
	if doc.InputSchema != nil {
		inputSchema = value.TypeFromJSONSchema(doc.InputSchema)
	}
	if doc.OutputSchema != nil {
		outputSchema = value.TypeFromJSONSchema(doc.OutputSchema)
	}
	return &marketplace.Manifest{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Provider: marketplace.Provider{
			Kind:       marketplace.ProviderKind(doc.Provider.Kind),
			LocalName:  doc.Provider.LocalName,
			ServerURL:  doc.Provider.ServerURL,
			ToolName:   doc.Provider.ToolName,
			TimeoutMS:  doc.Provider.TimeoutMS,
			Endpoint:   doc.Provider.Endpoint,
			Method:     doc.Provider.Method,
			AuthEnvVar: doc.Provider.AuthEnvVar,
			ModuleURL:  doc.Provider.ModuleURL,
			PlanRef:    doc.Provider.PlanRef,
		},
		Version:      doc.Version,
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
		Effects:      doc.Effects,
		Permissions:  doc.Permissions,
		Provenance: marketplace.Provenance{
			Source:       doc.Provenance.Source,
			ContentHash:  doc.Provenance.ContentHash,
			CustodyChain: doc.Provenance.CustodyChain,
			RegisteredAt: doc.Provenance.RegisteredAt,
		},
		Retry:      retry,
		TrustScore: doc.TrustScore,
		Cost:       doc.Cost,
		Metadata:   doc.Metadata,
	}
}
