package marshal

import (
	"fmt"

	"github.com/blang/semver/v4"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

const (
	MajorVersion = 4
	MinorVersion = 8
)

// FormatVersion 为写出的格式版本，读取时接受相同主版本且次版本不高于它的数据。
var FormatVersion = semver.Version{Major: MajorVersion, Minor: MinorVersion}

const (
	tagNil         byte = '0'
	tagTrue        byte = 'T'
	tagFalse       byte = 'F'
	tagFixnum      byte = 'i'
	tagBignum      byte = 'l'
	tagFloat       byte = 'f'
	tagSymbol      byte = ':'
	tagSymlink     byte = ';'
	tagString      byte = '"'
	tagRegexp      byte = '/'
	tagArray       byte = '['
	tagHash        byte = '{'
	tagHashDef     byte = '}'
	tagStruct      byte = 'S'
	tagObject      byte = 'o'
	tagUserDef     byte = 'u'
	tagUserMarshal byte = 'U'
	tagClass       byte = 'c'
	tagModule      byte = 'm'
	tagExtended    byte = 'e'
	tagUClass      byte = 'C'
	tagIVar        byte = 'I'
	tagLink        byte = '@'
)

// 定长整数的取值范围，超出范围的整数按大整数写出。
const (
	fixnumMin = -1 << 30
	fixnumMax = 1<<30 - 1
)

var tagNames = map[byte]string{
	tagNil:         "nil",
	tagTrue:        "true",
	tagFalse:       "false",
	tagFixnum:      "fixnum",
	tagBignum:      "bignum",
	tagFloat:       "float",
	tagSymbol:      "symbol",
	tagSymlink:     "symlink",
	tagString:      "string",
	tagRegexp:      "regexp",
	tagArray:       "array",
	tagHash:        "hash",
	tagHashDef:     "hash_default",
	tagStruct:      "struct",
	tagObject:      "object",
	tagUserDef:     "user_defined",
	tagUserMarshal: "user_marshal",
	tagClass:       "class",
	tagModule:      "module",
	tagExtended:    "extended",
	tagUClass:      "user_class",
	tagIVar:        "ivar",
	tagLink:        "link",
}

func tagName(tag byte) string {
	if name, ok := tagNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", tag)
}

// CheckVersion 校验数据头中的版本号。
func CheckVersion(major, minor byte) error {
	v := semver.Version{Major: uint64(major), Minor: uint64(minor)}
	if v.Major != FormatVersion.Major || v.GT(FormatVersion) {
		return merr.WrapErrMarshalVersionMismatch(
			fmt.Sprintf("%d.%d", FormatVersion.Major, FormatVersion.Minor),
			fmt.Sprintf("%d.%d", major, minor),
		)
	}
	return nil
}
