package bus

import "encoding/json"

// Frame is one parsed unit from the upstream stream, before it becomes a
// stored event. Fields mirror the wire schema:
//
//	{"event": "pepito", "type": "in"|"out", "time": 1700000000, "img": "https://..."}
type Frame struct {
	Event string `json:"event"`
	Type  string `json:"type"`
	Time  int64  `json:"time"`
	Img   string `json:"img"`
}

// ParseFrame decodes a single stream line into a Frame.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Valid reports whether the frame carries everything the processor needs.
func (f Frame) Valid() bool {
	return (f.Type == "in" || f.Type == "out") && f.Time > 0 && f.Img != ""
}
