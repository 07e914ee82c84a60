package translit

import (
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// cyrToLat maps Serbian-family Cyrillic to its Latin counterpart. Three
// letters expand to digraphs, so the mapping is rune to string.
var cyrToLat = map[rune]string{
	'А': "A", 'Б': "B", 'В': "V", 'Г': "G", 'Д': "D", 'Ђ': "Đ",
	'Е': "E", 'Ж': "Ž", 'З': "Z", 'И': "I", 'Ј': "J", 'К': "K",
	'Л': "L", 'Љ': "Lj", 'М': "M", 'Н': "N", 'Њ': "Nj", 'О': "O",
	'П': "P", 'Р': "R", 'С': "S", 'Т': "T", 'Ћ': "Ć", 'У': "U",
	'Ф': "F", 'Х': "H", 'Ц': "C", 'Ч': "Č", 'Џ': "Dž", 'Ш': "Š",
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'ђ': "đ",
	'е': "e", 'ж': "ž", 'з': "z", 'и': "i", 'ј': "j", 'к': "k",
	'л': "l", 'љ': "lj", 'м': "m", 'н': "n", 'њ': "nj", 'о': "o",
	'п': "p", 'р': "r", 'с': "s", 'т': "t", 'ћ': "ć", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "c", 'ч': "č", 'џ': "dž", 'ш': "š",
}

// latinizer rewrites Cyrillic runes to Latin strings; everything else
// passes through untouched. runes.Map cannot serve here because the
// digraph letters map one rune to two.
type latinizer struct {
	transform.NopResetter
}

func (latinizer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size == 1 && !atEOF && !utf8.FullRune(src[nSrc:]) {
			err = transform.ErrShortSrc
			return
		}

		mapped, ok := cyrToLat[r]
		if !ok {
			mapped = string(src[nSrc : nSrc+size])
		}
		if nDst+len(mapped) > len(dst) {
			err = transform.ErrShortDst
			return
		}
		nDst += copy(dst[nDst:], mapped)
		nSrc += size
	}
	return nDst, nSrc, nil
}

// ToLatin transliterates Serbian-family Cyrillic to Latin script. On a
// transform failure the input is returned unchanged.
func ToLatin(s string) string {
	out, _, err := transform.String(latinizer{}, s)
	if err != nil {
		return s
	}
	return out
}

// ContainsCyrillic reports whether s holds any rune from the base
// Cyrillic block (U+0410 through U+044F).
func ContainsCyrillic(s string) bool {
	for _, r := range s {
		if r >= 'А' && r <= 'я' {
			return true
		}
	}
	return false
}
