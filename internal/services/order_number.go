package services

import (
	"fmt"
	"math/rand"
	"time"
)

const orderNumberSuffixSpace = 10000

// OrderNumberGenerator выдаёт кандидатов ORD-{yyyyMMdd}-{4 цифры}.
// Уникальность гарантирует ограничение в базе, генератор лишь предлагает номер.
type OrderNumberGenerator struct {
	intn func(n int) int
}

// NewOrderNumberGenerator принимает источник случайности; nil означает math/rand.
func NewOrderNumberGenerator(intn func(n int) int) *OrderNumberGenerator {
	if intn == nil {
		intn = rand.Intn
	}
	return &OrderNumberGenerator{intn: intn}
}

// Next возвращает номер-кандидат для даты at (UTC).
func (g *OrderNumberGenerator) Next(at time.Time) string {
	suffix := g.intn(orderNumberSuffixSpace) % orderNumberSuffixSpace
	if suffix < 0 {
		suffix = -suffix
	}
	return fmt.Sprintf("ORD-%s-%04d", at.UTC().Format("20060102"), suffix)
}
