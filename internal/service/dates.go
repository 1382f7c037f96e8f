package service

import (
	"strings"
	"time"

	"github.com/couponslot-next/internal/models"
)

const dateLayout = "2006-01-02"

// parseDate 解析 YYYY-MM-DD 日期（UTC）
func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return models.DateOf(t), nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
