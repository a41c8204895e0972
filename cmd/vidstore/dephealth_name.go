// dephealth_name.go — определение имени вершины графа topologymetrics.
//
// Если DEPHEALTH_NAME не задана, имя выводится из hostname пода:
// для Deployment отбрасываются pod-template-hash и случайный суффикс,
// для StatefulSet — порядковый номер.
package main

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// lowerAlnum — допустимые символы kubernetes-суффиксов пода.
var lowerAlnum = regexp.MustCompile(`^[a-z0-9]+$`)

// dephealthName возвращает имя вершины графа: конфигурация,
// иначе — имя владельца пода из hostname, иначе — "vidstore".
func dephealthName(configured string) string {
	if configured != "" {
		return configured
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "vidstore"
	}
	return parseOwnerName(hostname)
}

// parseOwnerName извлекает имя владельца пода из hostname.
//
// Deployment: <owner>-<pod-template-hash>-<random5> → <owner>
// StatefulSet: <owner>-<ordinal> → <owner>
// Иначе hostname возвращается как есть.
func parseOwnerName(hostname string) string {
	parts := strings.Split(hostname, "-")
	n := len(parts)

	// Deployment: случайный суффикс из 5 символов + hash из 8-10 символов
	if n >= 3 &&
		len(parts[n-1]) == 5 && lowerAlnum.MatchString(parts[n-1]) &&
		len(parts[n-2]) >= 8 && len(parts[n-2]) <= 10 && lowerAlnum.MatchString(parts[n-2]) {
		return strings.Join(parts[:n-2], "-")
	}

	// StatefulSet: числовой ordinal
	if n >= 2 {
		if _, err := strconv.Atoi(parts[n-1]); err == nil {
			return strings.Join(parts[:n-1], "-")
		}
	}

	return hostname
}
