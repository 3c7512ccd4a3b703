package analytics

import "strings"

// signguNameToCode maps the 25 Seoul district names to their standard
// five-digit administrative codes.
var signguNameToCode = map[string]string{
	"종로구":  "11110",
	"중구":   "11140",
	"용산구":  "11170",
	"성동구":  "11200",
	"광진구":  "11215",
	"동대문구": "11230",
	"중랑구":  "11260",
	"성북구":  "11290",
	"강북구":  "11305",
	"도봉구":  "11320",
	"노원구":  "11350",
	"은평구":  "11380",
	"서대문구": "11410",
	"마포구":  "11440",
	"양천구":  "11470",
	"강서구":  "11500",
	"구로구":  "11530",
	"금천구":  "11545",
	"영등포구": "11560",
	"동작구":  "11590",
	"관악구":  "11620",
	"서초구":  "11650",
	"강남구":  "11680",
	"송파구":  "11710",
	"강동구":  "11740",
}

// SignguNameToCode resolves a Seoul district name to its five-digit code;
// empty when unknown.
func SignguNameToCode(name string) string {
	return signguNameToCode[strings.TrimSpace(name)]
}
