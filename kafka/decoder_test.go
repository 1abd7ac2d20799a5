package kafka

import (
	// Go Internal Packages
	"encoding/json"
	"net/http"
	"testing"

	// External Packages
	"github.com/jarcoal/httpmock"
	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/sr"
)

const stationSchema = `{
  "type": "record",
  "name": "station",
  "namespace": "org.chicago.cta",
  "fields": [
    {"name": "stop_id", "type": "int"},
    {"name": "station_name", "type": "string"},
    {"name": "red", "type": "boolean"}
  ]
}`

const registryURL = "http://registry:8081"

func newMockRegistry(t *testing.T) (*SchemaRegistry, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	body, err := json.Marshal(map[string]string{"schema": stationSchema})
	require.NoError(t, err)
	transport.RegisterResponder(http.MethodGet, registryURL+"/schemas/ids/7",
		httpmock.NewBytesResponder(http.StatusOK, body))
	transport.RegisterResponder(http.MethodGet, registryURL+"/schemas/ids/8",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error_code":40403,"message":"Schema not found"}`))

	registry, err := NewSchemaRegistry(registryURL+"/", &http.Client{Transport: transport})
	require.NoError(t, err)
	return registry, transport
}

func frame(t *testing.T, id int, body []byte) []byte {
	t.Helper()
	var header sr.ConfluentHeader
	out, err := header.AppendEncode(nil, id, nil)
	require.NoError(t, err)
	return append(out, body...)
}

func encodeStation(t *testing.T, native map[string]any) []byte {
	t.Helper()
	codec, err := goavro.NewCodec(stationSchema)
	require.NoError(t, err)
	body, err := codec.BinaryFromNative(nil, native)
	require.NoError(t, err)
	return body
}

func TestAvroDecoder_DecodesFramedValue(t *testing.T) {
	registry, transport := newMockRegistry(t)
	dec := NewAvroDecoder(registry)
	payload := frame(t, 7, encodeStation(t, map[string]any{"stop_id": 30001, "station_name": "Austin", "red": false}))

	got, err := dec.DecodeValue("stations", payload)
	require.NoError(t, err)

	station, ok := got.(map[string]any)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, int32(30001), station["stop_id"])
	assert.Equal(t, "Austin", station["station_name"])
	assert.Equal(t, false, station["red"])

	_, err = dec.DecodeValue("stations", payload)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.GetTotalCallCount(), "codec must be cached")
}

func TestAvroDecoder_UnknownSchema(t *testing.T) {
	registry, _ := newMockRegistry(t)
	dec := NewAvroDecoder(registry)

	_, err := dec.DecodeValue("stations", frame(t, 8, []byte{0x02}))
	var rerr *sr.ResponseError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusNotFound, rerr.StatusCode)
}

func TestAvroDecoder_TruncatedBody(t *testing.T) {
	registry, _ := newMockRegistry(t)
	dec := NewAvroDecoder(registry)
	body := encodeStation(t, map[string]any{"stop_id": 1, "station_name": "Clark/Lake", "red": true})

	_, err := dec.DecodeValue("stations", frame(t, 7, body[:2]))
	assert.Error(t, err)
}

func TestAvroDecoder_Framing(t *testing.T) {
	dec := NewAvroDecoder(nil)

	_, err := dec.DecodeValue("stations", []byte{0x0, 0x1})
	assert.ErrorIs(t, err, ErrNotFramed)

	_, err = dec.DecodeValue("stations", []byte("plain"))
	assert.ErrorIs(t, err, ErrNotFramed)

	got, err := dec.DecodeValue("stations", nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	key, err := dec.DecodeKey("stations", []byte("40010"))
	assert.NoError(t, err)
	assert.Nil(t, key, "plain keys stay raw")
}

func TestRawDecoder(t *testing.T) {
	got, err := RawDecoder{}.DecodeValue("stations", []byte{0x0, 0x0, 0x0, 0x0, 0x1})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestAvroDecoder_FramedKey(t *testing.T) {
	registry, _ := newMockRegistry(t)
	dec := NewAvroDecoder(registry)
	key := frame(t, 7, encodeStation(t, map[string]any{"stop_id": 30002, "station_name": "Austin", "red": false}))

	got, err := dec.DecodeKey("stations", key)
	require.NoError(t, err)
	assert.Equal(t, int32(30002), got.(map[string]any)["stop_id"])
}
