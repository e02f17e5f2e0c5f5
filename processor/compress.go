package processor

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
)

// Compress сжимает данные snappy
func Compress(data []byte) []byte {
	return snappy.Encode(nil, data)
}

// Decompress распаковывает данные snappy
func Decompress(data []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	return decompressed, nil
}

// EncodeSnapshot сериализует отчет в JSON и сжимает его
func EncodeSnapshot(v any) (payload []byte, rawSize int, err error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сериализации отчета: %w", err)
	}
	return Compress(data), len(data), nil
}

// DecodeSnapshot распаковывает сжатый отчет и возвращает исходный JSON
func DecodeSnapshot(payload []byte) (json.RawMessage, error) {
	data, err := Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки отчета: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("поврежденный отчет: некорректный JSON")
	}
	return json.RawMessage(data), nil
}
