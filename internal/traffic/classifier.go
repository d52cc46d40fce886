// Package traffic отделяет живые переходы от краулеров и превью-ботов,
// чтобы счётчик кликов отражал только реальные визиты.
package traffic

import (
	"strings"
)

// Kind результат классификации запроса
type Kind int

const (
	Human Kind = iota
	Automated
)

func (k Kind) String() string {
	if k == Automated {
		return "automated"
	}
	return "human"
}

// Сигнатуры известных ботов: unfurl'еры мессенджеров, поисковые краулеры
// и общие маркеры. Сравнение без учёта регистра, по подстроке.
var botSignatures = []string{
	// мессенджеры и соцсети (link preview)
	"whatsapp",
	"telegrambot",
	"twitterbot",
	"facebookexternalhit",
	"facebot",
	"slackbot",
	"discordbot",
	"linkedinbot",
	"skypeuripreview",
	"pinterest",
	// поисковые краулеры
	"googlebot",
	"bingbot",
	"yandex",
	"baiduspider",
	"duckduckbot",
	"applebot",
	"petalbot",
	// общие маркеры и утилиты
	"bot",
	"crawler",
	"spider",
	"preview",
	"curl",
	"wget",
	"python-requests",
	"headless",
}

// Classify определяет, человек перед нами или автомат.
// Пустой или неизвестный User-Agent считается человеком: недосчитать
// реальный клик хуже, чем засчитать редкого неопознанного бота.
func Classify(userAgent string) Kind {
	ua := strings.ToLower(userAgent)
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return Automated
		}
	}
	return Human
}
