package probe

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// EncodeLine wraps one raw trace line into its protobuf wire form.
func EncodeLine(line string) ([]byte, error) {
	return proto.Marshal(wrapperspb.String(line))
}

// DecodeLine unwraps a message produced by EncodeLine.
func DecodeLine(data []byte) (string, error) {
	var msg wrapperspb.StringValue
	if err := proto.Unmarshal(data, &msg); err != nil {
		return "", err
	}
	return msg.GetValue(), nil
}
