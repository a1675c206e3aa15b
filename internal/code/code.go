package code

import (
	"crypto/rand"
	"math/big"
)

// Alphabet содержит 62 символа, из которых составляется короткий код.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength определяет длину кода по умолчанию.
const DefaultLength = 6

// Source определяет источник случайных чисел.
// Intn возвращает равномерно распределенное число в [0, n).
type Source interface {
	Intn(n int) int
}

// Generator генерирует случайные короткие коды.
type Generator struct {
	src Source
}

// New создает генератор с указанным источником случайных чисел.
// При src == nil используется crypto/rand.
func New(src Source) *Generator {
	if src == nil {
		src = cryptoSource{}
	}
	return &Generator{src: src}
}

// Generate возвращает код длины length из символов Alphabet.
// При length <= 0 используется DefaultLength.
func (g *Generator) Generate(length int) string {
	if length <= 0 {
		length = DefaultLength
	}

	letters := make([]byte, length)
	for i := range letters {
		letters[i] = Alphabet[g.src.Intn(len(Alphabet))]
	}

	return string(letters)
}

type cryptoSource struct{}

func (cryptoSource) Intn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}
