package mapper

import "strconv"

func FormatMessageId(id int64) string {
	return strconv.FormatInt(id, 10)
}
