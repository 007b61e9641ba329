package gmp

import (
	"encoding/xml"
	"strconv"
	"strings"

	"scanhub/internal/domain"
)

// ParseSummary разбирает XML-отчёт GMP и строит гистограмму серьёзности:
// severity >= 7.0 -> high; >= 4.0 -> medium; > 0 -> low; иначе -> log.
// Считает все <host> и <result> элементы на любой глубине документа,
// подражая поведению XPath ".//host" и ".//result" оригинала.
func ParseSummary(reportXML string) (*domain.Summary, error) {
	summary := &domain.Summary{}

	decoder := xml.NewDecoder(strings.NewReader(reportXML))

	var inResult bool
	var resultDepth int
	var severitySeen bool
	var severityValue float64

	for {
		tok, err := decoder.Token()
		if err != nil {
			break // io.EOF или некорректный XML — возвращаем то, что успели собрать
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "host":
				summary.HostsScanned++
			case "result":
				if !inResult {
					inResult = true
					resultDepth = 0
					severitySeen = false
					severityValue = 0
				} else {
					resultDepth++
				}
			case "severity":
				if inResult && !severitySeen {
					var text string
					if err := decoder.DecodeElement(&text, &t); err == nil {
						if v, parseErr := strconv.ParseFloat(strings.TrimSpace(text), 64); parseErr == nil {
							severityValue = v
							severitySeen = true
						}
					}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "result" && inResult {
				if resultDepth > 0 {
					resultDepth--
					continue
				}
				classifySeverity(summary, severitySeen, severityValue)
				inResult = false
			}
		}
	}

	return summary, nil
}

func classifySeverity(summary *domain.Summary, found bool, severity float64) {
	if !found {
		return
	}
	switch {
	case severity >= 7.0:
		summary.VulnsHigh++
	case severity >= 4.0:
		summary.VulnsMedium++
	case severity > 0:
		summary.VulnsLow++
	default:
		summary.VulnsLog++
	}
}
