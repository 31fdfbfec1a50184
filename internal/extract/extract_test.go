package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes_EmptyInput(t *testing.T) {
	assert.Empty(t, Codes(""))
	assert.Empty(t, Codes("no secrets here"))
}

func TestCodes_BareDigits(t *testing.T) {
	codes := Codes("Your code is 1234.")
	assert.Contains(t, codes, "1234")
}

func TestCodes_OTP(t *testing.T) {
	codes := Codes("Your OTP: 9876")
	assert.Contains(t, codes, "9876")
}

func TestCodes_VerificationAlnum(t *testing.T) {
	codes := Codes("Verification: XYZ789")
	assert.Contains(t, codes, "XYZ789")
}

func TestCodes_PinDigitsOnly(t *testing.T) {
	codes := Codes("pin: 445566")
	assert.Contains(t, codes, "445566")

	// pin 模式仅限数字，字母 token 不应被 pin 模式捕获
	codes = Codes("pin: abcdef")
	assert.NotContains(t, codes, "abcdef")
}

func TestCodes_CaseInsensitiveKeyword(t *testing.T) {
	codes := Codes("CODE - AB12CD")
	assert.Contains(t, codes, "AB12CD")
}

func TestCodes_UnionDeduplicates(t *testing.T) {
	// 同一 token 被多个模式命中时只出现一次
	codes := Codes("code 123456 and again OTP 123456")
	count := 0
	for _, c := range codes {
		if c == "123456" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCodes_Deterministic(t *testing.T) {
	text := "code AAAA1 code BBBB2 pin 7777 otp 8888 verification CCCC3"
	first := Codes(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Codes(text))
	}
}

func TestCodes_DigitBoundaries(t *testing.T) {
	// 3 位与 9 位数字都不满足 4-8 位裸数字模式
	assert.Empty(t, Codes("order 123 ref 123456789"))
}

func TestCodes_PhoneNumberFalsePositive(t *testing.T) {
	// 偏向召回率的取舍：电话号码片段会被当作候选验证码
	codes := Codes("call 5551234 now")
	assert.Contains(t, codes, "5551234")
}
