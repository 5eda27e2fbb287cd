package repo

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag classifies a repository entry. Values follow the DIA SymTagEnum
// numbering so snapshots produced from PDB-derived data keep their meaning.
type Tag int

const (
	TagNull Tag = iota
	TagExe
	TagCompiland
	TagCompilandDetails
	TagCompilandEnv
	TagFunction
	TagBlock
	TagData
	TagAnnotation
	TagLabel
	TagPublicSymbol
	TagUDT
	TagEnum
	TagFunctionType
	TagPointerType
	TagArrayType
	TagBaseType
	TagTypedef
	TagBaseClass
	TagFriend
	TagFunctionArgType
	TagFuncDebugStart
	TagFuncDebugEnd
	TagUsingNamespace
	TagVTableShape
	TagVTable
	TagCustom
	TagThunk
)

var tagNames = map[Tag]string{
	TagNull:             "null",
	TagExe:              "exe",
	TagCompiland:        "compiland",
	TagCompilandDetails: "compiland_details",
	TagCompilandEnv:     "compiland_env",
	TagFunction:         "function",
	TagBlock:            "block",
	TagData:             "data",
	TagAnnotation:       "annotation",
	TagLabel:            "label",
	TagPublicSymbol:     "public",
	TagUDT:              "udt",
	TagEnum:             "enum",
	TagFunctionType:     "function_type",
	TagPointerType:      "pointer_type",
	TagArrayType:        "array_type",
	TagBaseType:         "base_type",
	TagTypedef:          "typedef",
	TagBaseClass:        "base_class",
	TagFriend:           "friend",
	TagFunctionArgType:  "function_arg_type",
	TagFuncDebugStart:   "func_debug_start",
	TagFuncDebugEnd:     "func_debug_end",
	TagUsingNamespace:   "using_namespace",
	TagVTableShape:      "vtable_shape",
	TagVTable:           "vtable",
	TagCustom:           "custom",
	TagThunk:            "thunk",
}

var tagsByName = func() map[string]Tag {
	m := make(map[string]Tag, len(tagNames))
	for t, n := range tagNames {
		m[n] = t
	}
	return m
}()

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "tag(" + strconv.Itoa(int(t)) + ")"
}

// ParseTag accepts a tag name (case-insensitive) or its numeric value.
func ParseTag(s string) (Tag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := tagsByName[s]; ok {
		return t, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Tag(n), nil
	}
	return TagNull, fmt.Errorf("unknown tag %q", s)
}

func (t Tag) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tag) UnmarshalText(b []byte) error {
	v, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DataKind refines TagData entries (DIA DataKind).
type DataKind int

const (
	DataUnknown DataKind = iota
	DataLocal
	DataStaticLocal
	DataParam
	DataObjectPtr
	DataFileStatic
	DataGlobal
	DataMember
	DataStaticMember
	DataConstant
)

var dataKindNames = []string{
	"unknown", "local", "static_local", "param", "object_ptr",
	"file_static", "global", "member", "static_member", "constant",
}

func (k DataKind) String() string {
	if int(k) >= 0 && int(k) < len(dataKindNames) {
		return dataKindNames[k]
	}
	return "datakind(" + strconv.Itoa(int(k)) + ")"
}

func (k DataKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *DataKind) UnmarshalText(b []byte) error {
	v, err := parseEnum(string(b), dataKindNames)
	if err != nil {
		return fmt.Errorf("data kind: %w", err)
	}
	*k = DataKind(v)
	return nil
}

// LocationType describes where a data entry lives (DIA LocationType).
type LocationType int

const (
	LocNull LocationType = iota
	LocStatic
	LocTLS
	LocRegRel
	LocThisRel
	LocEnregistered
	LocBitField
	LocSlot
	LocILRel
	LocMetaData
	LocConstant
)

var locationNames = []string{
	"null", "static", "tls", "reg_rel", "this_rel", "enregistered",
	"bit_field", "slot", "il_rel", "metadata", "constant",
}

func (l LocationType) String() string {
	if int(l) >= 0 && int(l) < len(locationNames) {
		return locationNames[l]
	}
	return "location(" + strconv.Itoa(int(l)) + ")"
}

func (l LocationType) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *LocationType) UnmarshalText(b []byte) error {
	v, err := parseEnum(string(b), locationNames)
	if err != nil {
		return fmt.Errorf("location type: %w", err)
	}
	*l = LocationType(v)
	return nil
}

// Access is the CV access level of a member or base class.
type Access int

const (
	AccessNone      Access = 0
	AccessPrivate   Access = 1
	AccessProtected Access = 2
	AccessPublic    Access = 3
)

// UDTKind distinguishes the flavours of user-defined types.
type UDTKind int

const (
	UDTStruct UDTKind = iota
	UDTClass
	UDTUnion
	UDTInterface
)

var udtKindNames = []string{"struct", "class", "union", "interface"}

func (k UDTKind) String() string {
	if int(k) >= 0 && int(k) < len(udtKindNames) {
		return udtKindNames[k]
	}
	return "udtkind(" + strconv.Itoa(int(k)) + ")"
}

func (k UDTKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *UDTKind) UnmarshalText(b []byte) error {
	v, err := parseEnum(string(b), udtKindNames)
	if err != nil {
		return fmt.Errorf("udt kind: %w", err)
	}
	*k = UDTKind(v)
	return nil
}

func parseEnum(s string, names []string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("unknown value %q", s)
}
