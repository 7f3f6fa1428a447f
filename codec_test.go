package leaderboard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeScore_Int32(t *testing.T) {
	v, err := encodeScore(TypeInt32, int32(42))
	assert.NoError(t, err)
	assert.Equal(t, float64(42), v)
}

func TestEncodeScore_Int64(t *testing.T) {
	v, err := encodeScore(TypeInt64, int64(1000))
	assert.NoError(t, err)
	assert.Equal(t, float64(1000), v)
}

func TestEncodeScore_Float64(t *testing.T) {
	v, err := encodeScore(TypeFloat64, 3.5)
	assert.NoError(t, err)
	assert.Equal(t, 3.5, v)
}

func TestEncodeScore_TypeMismatchFails(t *testing.T) {
	_, err := encodeScore(TypeInt32, "not a number")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = encodeScore(TypeInt64, 3.14)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDecodeScore_Int32RoundsHalfToEven(t *testing.T) {
	v, err := decodeScore(TypeInt32, 2.5)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), v)

	v, err = decodeScore(TypeInt32, 3.5)
	assert.NoError(t, err)
	assert.Equal(t, int32(4), v)
}

func TestDecodeScore_Int32OverflowFails(t *testing.T) {
	_, err := decodeScore(TypeInt32, math.MaxInt32+100)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestDecodeScore_Int64(t *testing.T) {
	v, err := decodeScore(TypeInt64, 12345)
	assert.NoError(t, err)
	assert.Equal(t, int64(12345), v)
}

func TestDecodeScore_Float64Passthrough(t *testing.T) {
	v, err := decodeScore(TypeFloat64, 9.875)
	assert.NoError(t, err)
	assert.Equal(t, 9.875, v)
}

func TestDecodeScore_UnknownTypeFails(t *testing.T) {
	_, err := decodeScore(NumericType(99), 1)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestToInt64_HandlesStringIntAndFloatReplies(t *testing.T) {
	v, err := toInt64("42")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = toInt64(int64(7))
	assert.NoError(t, err)
	assert.Equal(t, int64(7), v)

	v, err = toInt64(float64(9))
	assert.NoError(t, err)
	assert.Equal(t, int64(9), v)
}

func TestToFloat64_HandlesStringAndNumericReplies(t *testing.T) {
	v, err := toFloat64("3.5")
	assert.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = toFloat64(int64(10))
	assert.NoError(t, err)
	assert.Equal(t, float64(10), v)
}
