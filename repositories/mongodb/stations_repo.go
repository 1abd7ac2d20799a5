package mongodb

import (
	// Go Internal Packages
	"context"

	// Local Packages
	models "station-stream/models"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type StationRepository struct {
	Client     *mongo.Client
	Database   string
	Collection string
}

func NewStationRepository(client *mongo.Client, database string) *StationRepository {
	return &StationRepository{Client: client, Database: database, Collection: "stations"}
}

// UpsertStation inserts the station or replaces the stored one with the same stop id
func (r *StationRepository) UpsertStation(ctx context.Context, station models.MongoStation) error {
	collection := r.Client.Database(r.Database).Collection(r.Collection)
	opts := options.Replace().SetUpsert(true)
	_, err := collection.ReplaceOne(ctx, bson.M{"_id": station.StopID}, station, opts)
	if err != nil {
		return err
	}
	return nil
}
