package classfile

import "fmt"

// ParseMethodDescriptor splits a method descriptor such as "(IJ[Ljava/lang/String;)V"
// into its parameter types and return type.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if len(desc) == 0 || desc[0] != '(' {
		return nil, "", fmt.Errorf("malformed method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		end, err := fieldTypeEnd(desc, i)
		if err != nil {
			return nil, "", err
		}
		params = append(params, desc[i:end])
		i = end
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("malformed method descriptor %q: missing ')'", desc)
	}
	ret = desc[i+1:]
	if ret != "V" {
		end, err := fieldTypeEnd(desc, i+1)
		if err != nil {
			return nil, "", err
		}
		if end != len(desc) {
			return nil, "", fmt.Errorf("malformed method descriptor %q: trailing data", desc)
		}
	}
	return params, ret, nil
}

// fieldTypeEnd returns the index just past the field type starting at i.
func fieldTypeEnd(desc string, i int) (int, error) {
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i >= len(desc) {
		return 0, fmt.Errorf("malformed descriptor %q: truncated type", desc)
	}
	switch desc[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		for j := i + 1; j < len(desc); j++ {
			if desc[j] == ';' {
				return j + 1, nil
			}
		}
		return 0, fmt.Errorf("malformed descriptor %q: unterminated class type", desc)
	}
	return 0, fmt.Errorf("malformed descriptor %q: unknown type %q", desc, desc[i])
}

// TypeSize returns the number of storage units a value of the given field type
// occupies: 2 for long and double, 1 otherwise.
func TypeSize(fieldType string) int {
	if fieldType == "J" || fieldType == "D" {
		return 2
	}
	return 1
}

// ArgSlots returns the number of local variable slots taken by a method's
// arguments, including the receiver of instance methods.
func ArgSlots(desc string, static bool) (int, error) {
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	n := 0
	if !static {
		n = 1
	}
	for _, p := range params {
		n += TypeSize(p)
	}
	return n, nil
}

// ValidFieldType reports whether desc is exactly one field type, such as "I",
// "[J" or "Ljava/lang/String;".
func ValidFieldType(desc string) bool {
	if desc == "" {
		return false
	}
	end, err := fieldTypeEnd(desc, 0)
	return err == nil && end == len(desc)
}
