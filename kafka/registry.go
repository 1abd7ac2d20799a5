package kafka

import (
	// Go Internal Packages
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	// External Packages
	"github.com/bluele/gcache"
	"github.com/linkedin/goavro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

const (
	defaultCodecCacheSize = 128
	defaultLookupTimeout  = 10 * time.Second
)

// SchemaRegistry resolves Confluent schema ids to Avro codecs. Codecs are
// cached, so the registry is hit once per schema id.
type SchemaRegistry struct {
	client *sr.Client
	codecs gcache.Cache
}

// NewSchemaRegistry builds a registry lookup against baseURL. A nil httpc
// gets a client with a ten second timeout.
func NewSchemaRegistry(baseURL string, httpc *http.Client) (*SchemaRegistry, error) {
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultLookupTimeout}
	}
	client, err := sr.NewClient(
		sr.URLs(strings.TrimRight(baseURL, "/")),
		sr.HTTPClient(httpc),
	)
	if err != nil {
		return nil, fmt.Errorf("schema registry: %w", err)
	}

	r := &SchemaRegistry{client: client}
	r.codecs = gcache.New(defaultCodecCacheSize).
		LRU().
		LoaderFunc(func(key interface{}) (interface{}, error) {
			return r.fetchCodec(key.(int))
		}).
		Build()
	return r, nil
}

// Codec returns the codec registered under id.
func (r *SchemaRegistry) Codec(id int) (*goavro.Codec, error) {
	v, err := r.codecs.Get(id)
	if err != nil {
		return nil, err
	}
	return v.(*goavro.Codec), nil
}

func (r *SchemaRegistry) fetchCodec(id int) (*goavro.Codec, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultLookupTimeout)
	defer cancel()

	schema, err := r.client.SchemaByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("schema registry: schema %d: %w", id, err)
	}
	codec, err := goavro.NewCodec(schema.Schema)
	if err != nil {
		return nil, fmt.Errorf("schema registry: schema %d: %w", id, err)
	}
	return codec, nil
}
