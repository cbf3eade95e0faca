// Package mongo provides a MongoDB implementation of the intent graph
// store, persisting intents and edges for durability across restarts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	"github.com/mandubian/ccos-sub004/ccos/intentgraph/store"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Store is a MongoDB implementation of store.Store. Intents live in one
// collection keyed by id; edges live in a second collection keyed by the
// (from, to, type) triple.
type Store struct {
	intents *mongo.Collection
	edges   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New creates a MongoDB-backed store using the two given collections,
// typically "intents" and "intent_edges" in the same database.
func New(intents, edges *mongo.Collection) *Store {
	return &Store{intents: intents, edges: edges}
}

type intentDocument struct {
	ID              string            `bson:"_id"`
	Name            string            `bson:"name,omitempty"`
	Goal            string            `bson:"goal"`
	OriginalRequest string            `bson:"original_request,omitempty"`
	Constraints     map[string]any    `bson:"constraints,omitempty"`
	Preferences     map[string]any    `bson:"preferences,omitempty"`
	SuccessCriteria any               `bson:"success_criteria,omitempty"`
	Status          string            `bson:"status"`
	ParentID        string            `bson:"parent_id,omitempty"`
	ChildIDs        []string          `bson:"child_ids,omitempty"`
	ArbiterVersion  string            `bson:"arbiter_version,omitempty"`
	GeneratedAt     time.Time         `bson:"generated_at,omitempty"`
	ReasoningTrace  string            `bson:"reasoning_trace,omitempty"`
	CreatedAt       time.Time         `bson:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at"`
}

type edgeDocument struct {
	From string `bson:"from"`
	To   string `bson:"to"`
	Type string `bson:"type"`
}

func (s *Store) SaveIntent(ctx context.Context, in *intentgraph.Intent) error {
	doc := toDocument(in)
	opts := options.Replace().SetUpsert(true)
	_, err := s.intents.ReplaceOne(ctx, bson.M{"_id": in.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("mongodb save intent %q: %w", in.ID, err)
	}
	return nil
}

func (s *Store) GetIntent(ctx context.Context, id string) (*intentgraph.Intent, error) {
	var doc intentDocument
	err := s.intents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb get intent %q: %w", id, err)
	}
	return fromDocument(&doc), nil
}

func (s *Store) ListIntents(ctx context.Context) ([]*intentgraph.Intent, error) {
	cursor, err := s.intents.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongodb list intents: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	var docs []intentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb list intents decode: %w", err)
	}
	out := make([]*intentgraph.Intent, len(docs))
	for i, doc := range docs {
		out[i] = fromDocument(&doc)
	}
	return out, nil
}

func (s *Store) SaveEdge(ctx context.Context, e intentgraph.Edge) error {
	filter := bson.M{"from": e.From, "to": e.To, "type": string(e.Type)}
	opts := options.Replace().SetUpsert(true)
	_, err := s.edges.ReplaceOne(ctx, filter, edgeDocument{From: e.From, To: e.To, Type: string(e.Type)}, opts)
	if err != nil {
		return fmt.Errorf("mongodb save edge %s->%s: %w", e.From, e.To, err)
	}
	return nil
}

func (s *Store) ListEdges(ctx context.Context) ([]intentgraph.Edge, error) {
	cursor, err := s.edges.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongodb list edges: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	var docs []edgeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb list edges decode: %w", err)
	}
	out := make([]intentgraph.Edge, len(docs))
	for i, doc := range docs {
		out[i] = intentgraph.Edge{From: doc.From, To: doc.To, Type: intentgraph.EdgeType(doc.Type)}
	}
	return out, nil
}

func (s *Store) DeleteEdgesTouching(ctx context.Context, id string) error {
	filter := bson.M{"$or": []bson.M{{"from": id}, {"to": id}}}
	_, err := s.edges.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongodb delete edges touching %q: %w", id, err)
	}
	return nil
}

func toDocument(in *intentgraph.Intent) *intentDocument {
	constraints := make(map[string]any, len(in.Constraints))
	for k, v := range in.Constraints {
		constraints[k] = value.ToJSON(v)
	}
	preferences := make(map[string]any, len(in.Preferences))
	for k, v := range in.Preferences {
		preferences[k] = value.ToJSON(v)
	}
	var successCriteria any
	if in.SuccessCriteria != nil {
		successCriteria = value.ToJSON(*in.SuccessCriteria)
	}
	return &intentDocument{
		ID:              in.ID,
		Name:            in.Name,
		Goal:            in.Goal,
		OriginalRequest: in.OriginalRequest,
		Constraints:     constraints,
		Preferences:     preferences,
		SuccessCriteria: successCriteria,
		Status:          string(in.Status),
		ParentID:        in.ParentID,
		ChildIDs:        in.ChildIDs,
		ArbiterVersion:  in.Generation.ArbiterVersion,
		GeneratedAt:     in.Generation.GeneratedAt,
		ReasoningTrace:  in.Generation.ReasoningTrace,
		CreatedAt:       in.CreatedAt,
		UpdatedAt:       in.UpdatedAt,
	}
}

func fromDocument(doc *intentDocument) *intentgraph.Intent {
	constraints := make(map[string]value.Value, len(doc.Constraints))
	for k, v := range doc.Constraints {
		constraints[k] = value.FromJSON(v)
	}
	preferences := make(map[string]value.Value, len(doc.Preferences))
	for k, v := range doc.Preferences {
		preferences[k] = value.FromJSON(v)
	}
	var successCriteria *value.Value
	if doc.SuccessCriteria != nil {
		sc := value.FromJSON(doc.SuccessCriteria)
		successCriteria = &sc
	}
	return &intentgraph.Intent{
		ID:              doc.ID,
		Name:            doc.Name,
		Goal:            doc.Goal,
		OriginalRequest: doc.OriginalRequest,
		Constraints:     constraints,
		Preferences:     preferences,
		SuccessCriteria: successCriteria,
		Status:          intentgraph.Status(doc.Status),
		ParentID:        doc.ParentID,
		ChildIDs:        doc.ChildIDs,
		Generation: intentgraph.GenerationMetadata{
			ArbiterVersion: doc.ArbiterVersion,
			GeneratedAt:    doc.GeneratedAt,
			ReasoningTrace: doc.ReasoningTrace,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
