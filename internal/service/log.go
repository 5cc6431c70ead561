package service

import (
	"encoding/json"
	"log"
	"time"
)

// logJSON emits one JSON object per line, matching the request logger's
// output shape so service-level events land in the same stream.
func logJSON(data map[string]any) {
	data["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal log entry: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
