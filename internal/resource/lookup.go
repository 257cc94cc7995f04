package resource

// Join 把 refs 中匹配记录的 LabelField 写入每条记录的 lk.As。
// 线性查找；键值按字符串比较（兼容 1 / 1.0 / "1"）。找不到时不写入。
func Join(records []Record, refs []Record, lk Lookup) {
	keyField := lk.KeyField
	for _, rec := range records {
		key := FormatValue(rec[lk.Field])
		if key == "" {
			continue
		}
		for _, ref := range refs {
			var refKey any
			if keyField != "" {
				refKey = ref[keyField]
			} else if id, ok := ref.IDOf(""); ok {
				refKey = id
			}
			if FormatValue(refKey) == key {
				rec[lk.As] = ref[lk.LabelField]
				break
			}
		}
	}
}
