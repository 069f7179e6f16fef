package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"guildwarden/internal/cases"
)

// NextCaseID returns the highest stored case id plus one. Deleted cases
// still occupy their ids, so max+1 stays unique even after deletions.
func (s *Store) NextCaseID(ctx context.Context) (int64, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "case_id", Value: -1}})
	var top cases.Record
	err := s.cases.FindOne(ctx, bson.D{}, opts).Decode(&top)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return top.ID + 1, nil
}

func (s *Store) InsertCase(ctx context.Context, record cases.Record) error {
	_, err := s.cases.InsertOne(ctx, record)
	return err
}

func (s *Store) CaseByID(ctx context.Context, id int64) (cases.Record, error) {
	var record cases.Record
	err := s.cases.FindOne(ctx, bson.D{{Key: "case_id", Value: id}}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return cases.Record{}, cases.ErrCaseNotFound
	}
	if err != nil {
		return cases.Record{}, err
	}
	return record, nil
}

// SearchCases returns matches in store order. No match is an empty slice,
// not an error.
func (s *Store) SearchCases(ctx context.Context, filter cases.Filter) ([]cases.Record, error) {
	cursor, err := s.cases.Find(ctx, caseFilter(filter))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []cases.Record{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateCase patches the first match and returns the post-update document.
func (s *Store) UpdateCase(ctx context.Context, filter cases.Filter, patch cases.Patch) (cases.Record, error) {
	set := casePatch(patch)
	if len(set) == 0 {
		return cases.Record{}, errors.New("empty patch")
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var record cases.Record
	err := s.cases.FindOneAndUpdate(ctx, caseFilter(filter), bson.D{{Key: "$set", Value: set}}, opts).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return cases.Record{}, cases.ErrCaseNotFound
	}
	if err != nil {
		return cases.Record{}, err
	}
	return record, nil
}

func caseFilter(filter cases.Filter) bson.D {
	query := bson.D{}
	if filter.CaseID != 0 {
		query = append(query, bson.E{Key: "case_id", Value: filter.CaseID})
	}
	if filter.SubjectID != "" {
		query = append(query, bson.E{Key: "user_id", Value: filter.SubjectID})
	}
	if filter.Kind != "" {
		query = append(query, bson.E{Key: "type", Value: filter.Kind})
	}
	if filter.ChannelID != "" {
		query = append(query, bson.E{Key: "channel_id", Value: filter.ChannelID})
	}
	if filter.Active != nil {
		query = append(query, bson.E{Key: "active", Value: *filter.Active})
	}
	if filter.Deleted != nil {
		query = append(query, bson.E{Key: "deleted", Value: *filter.Deleted})
	}
	return query
}

func casePatch(patch cases.Patch) bson.D {
	set := bson.D{}
	if patch.Reason != nil {
		set = append(set, bson.E{Key: "reason", Value: *patch.Reason})
	}
	if patch.Duration != nil {
		set = append(set, bson.E{Key: "duration", Value: *patch.Duration})
	}
	if patch.Received != nil {
		set = append(set, bson.E{Key: "received", Value: *patch.Received})
	}
	if patch.Active != nil {
		set = append(set, bson.E{Key: "active", Value: *patch.Active})
	}
	if patch.Deleted != nil {
		set = append(set, bson.E{Key: "deleted", Value: *patch.Deleted})
	}
	return set
}
