package models

// Station is a row of the CTA stations table as emitted by the JDBC source
// connector with schemas disabled.
type Station struct {
	StopID                 int    `json:"stop_id"`
	DirectionID            string `json:"direction_id"`
	StopName               string `json:"stop_name"`
	StationName            string `json:"station_name"`
	StationDescriptiveName string `json:"station_descriptive_name"`
	StationID              int    `json:"station_id"`
	Order                  int    `json:"order"`
	Red                    bool   `json:"red"`
	Blue                   bool   `json:"blue"`
	Green                  bool   `json:"green"`
}

type MongoStation struct {
	StopID      int      `json:"stop_id" bson:"_id"`
	StationID   int      `json:"station_id" bson:"station_id"`
	StationName string   `json:"station_name" bson:"station_name"`
	StopName    string   `json:"stop_name" bson:"stop_name"`
	DirectionID string   `json:"direction_id" bson:"direction_id"`
	Order       int      `json:"order" bson:"order"`
	Lines       []string `json:"lines" bson:"lines"`
}

func (s *Station) Transform() MongoStation {
	var lines []string
	if s.Red {
		lines = append(lines, "red")
	}
	if s.Blue {
		lines = append(lines, "blue")
	}
	if s.Green {
		lines = append(lines, "green")
	}
	return MongoStation{
		StopID:      s.StopID,
		StationID:   s.StationID,
		StationName: s.StationName,
		StopName:    s.StopName,
		DirectionID: s.DirectionID,
		Order:       s.Order,
		Lines:       lines,
	}
}
