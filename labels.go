package historyquiz

import "strconv"

// AllEras lists the selectable eras in chronological order.
var AllEras = []Era{
	EraPrehistoric, EraGojoseon, EraEarlyStates, EraThreeKingdoms, EraUnifiedSilla,
	EraGoryeo, EraJoseonEarly, EraJoseonLate, EraEnlightenment, EraJapaneseColonial, EraModern,
}

// eraDescriptions are used in the generation prompt
var eraDescriptions = map[Era]string{
	EraPrehistoric:      "선사시대(구석기, 신석기, 청동기)",
	EraGojoseon:         "고조선(단군조선, 위만조선, 한사군 설치)",
	EraEarlyStates:      "원삼국시대(부여, 옥저, 동예, 삼한)",
	EraThreeKingdoms:    "삼국시대(고구려, 백제, 신라, 가야)",
	EraUnifiedSilla:     "남북국시대(통일신라, 발해)",
	EraGoryeo:           "고려시대(918-1392)",
	EraJoseonEarly:      "조선전기(1392-1592, 태조~선조, 임진왜란 이전)",
	EraJoseonLate:       "조선후기(1592-1876, 임진왜란~강화도조약)",
	EraEnlightenment:    "개화기/대한제국(1876-1910, 개항~경술국치)",
	EraJapaneseColonial: "일제강점기(1910-1945)",
	EraModern:           "현대(1945~현재, 해방, 분단, 민주화)",
}

// eraLabels also covers the alternative codes models tend to emit
var eraLabels = map[string]string{
	"prehistoric": "선사", "gojoseon": "고조선", "early_states": "원삼국",
	"three_kingdoms": "삼국", "unified_silla": "남북국", "goryeo": "고려",
	"joseon_early": "조선전기", "joseon_late": "조선후기", "enlightenment": "개화기",
	"japanese_colonial": "일제강점", "modern": "현대", "all": "전체",

	"joseon": "조선", "japanese_occupation": "일제강점", "japanese": "일제강점",
	"colonial": "일제강점", "silla": "신라", "baekje": "백제", "goguryeo": "고구려",
	"balhae": "발해", "gaya": "가야", "buyeo": "부여", "samhan": "삼한",
	"contemporary": "현대", "present": "현대", "liberation": "해방후",
	"korean_empire": "대한제국", "daehan": "대한제국", "opening": "개화기",
}

var difficultyLabels = map[Difficulty]string{
	DifficultyEasy:   "쉬움",
	DifficultyMedium: "보통",
	DifficultyHard:   "어려움",
	DifficultyMixed:  "혼합",
}

var typeDescriptions = map[QuestionType]string{
	TypeMultipleChoice: "객관식(4개 보기)",
	TypeShortAnswer:    "주관식(단답형)",
	TypeOX:             "OX퀴즈",
}

// EraLabel returns the short display label for an era code. Unknown codes
// are returned unchanged.
func EraLabel(era Era) string {
	if l, ok := eraLabels[string(era)]; ok {
		return l
	}
	return string(era)
}

// EraDescription returns the long form used when prompting.
func EraDescription(era Era) string {
	if d, ok := eraDescriptions[era]; ok {
		return d
	}
	return EraLabel(era)
}

func DifficultyLabel(d Difficulty) string {
	if l, ok := difficultyLabels[d]; ok {
		return l
	}
	return string(d)
}

func TypeDescription(t QuestionType) string {
	if d, ok := typeDescriptions[t]; ok {
		return d
	}
	return string(t)
}

// optionLabels are the enumerated option markers used on screen and paper
var optionLabels = []string{"(1)", "(2)", "(3)", "(4)", "(5)"}

// OptionLabel returns the marker for the zero-based option index.
func OptionLabel(i int) string {
	if i >= 0 && i < len(optionLabels) {
		return optionLabels[i]
	}
	return strconv.Itoa(i+1) + "."
}

// DisplayAnswer renders the canonical answer the way answer keys show it:
// option label for multiple choice, circle/cross for OX.
func DisplayAnswer(q Question) string {
	switch q.Type {
	case TypeMultipleChoice:
		for i, opt := range q.Options {
			if opt == q.Answer {
				return OptionLabel(i)
			}
		}
	case TypeOX:
		if normalize(q.Answer) == "o" || q.Answer == symbolO {
			return symbolO
		}
		return symbolX
	}
	return q.Answer
}
