package enum

import "errors"

var errUnknownEnumName = errors.New("enum: unknown name")

func marshalName(name string) ([]byte, error) {
	buf := make([]byte, 0, len(name)+2)
	buf = append(buf, '"')
	buf = append(buf, name...)
	buf = append(buf, '"')
	return buf, nil
}

func unmarshalName(data []byte) (string, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return "", errUnknownEnumName
	}
	return string(data[1 : len(data)-1]), nil
}
