package wire

import "encoding/json"

// Encode serializes m as a self-describing JSON record, matching the wire
// format named in the external interfaces: id, round, m_type, payload.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses b into a Message. Callers treat a non-nil error as a
// serialization failure to be logged and dropped, never as cause to mutate
// consensus state.
func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, err
	}

	return m, nil
}
