package models

import "strings"

// DisplayCategory buckets a lot into the label used by the export sheet and
// notification messages. Thresholds follow the sheet's category taxonomy.
func (l *Lot) DisplayCategory() string {
	if strings.Contains(strings.ToLower(l.Name), "офис") && l.Area >= 1000 && l.Area <= 3500 {
		return "Офис (от 1000 до 3500 м²)"
	}

	switch l.PropertyCategory {
	case "Сооружения", "Здания":
		return "Отдельно стоящее здание"
	case "Нежилые помещения", "Квартиры", "Машиноместо", "Гаражи и машиноместа":
		switch {
		case l.Area <= 1000:
			return "Промышленное помещение до 1000 м²"
		case l.Area <= 3000:
			return "Промышленное помещение от 1000 до 3000 м²"
		default:
			return "Промышленное помещение от 3000 м²"
		}
	}

	if strings.HasPrefix(l.PropertyCategory, "Зем") && l.Area >= 10000 {
		return "Коммерческая земля от 1 га"
	}

	switch {
	case l.Area <= 100:
		return "Стрит ритейл до 100 м²"
	case l.Area <= 250:
		return "Стрит ритейл от 100 до 250 м²"
	case l.Area <= 500:
		return "Стрит ритейл от 250 до 500 м²"
	case l.Area <= 1000:
		return "Стрит ритейл от 500 до 1000 м²"
	case l.Area <= 1500:
		return "Стрит ритейл от 1000 до 1500 м²"
	default:
		return "Стрит ритейл от 1500 м²"
	}
}
