package schema

// Posts is the detail table of a board.
var Posts = &Table{
	Suffix:     "",
	Surrogate:  "doc_id",
	NaturalKey: "num",
	Columns: []Column{
		{Name: "doc_id", Kind: Int},
		{Name: "media_id", Kind: Int, Nullable: true},
		{Name: "poster_ip", Kind: Text},
		{Name: "num", Kind: Int},
		{Name: "subnum", Kind: Int},
		{Name: "thread_num", Kind: Int},
		{Name: "op", Kind: Int},
		{Name: "timestamp", Kind: Int},
		{Name: "timestamp_expired", Kind: Int},
		{Name: "preview_orig", Kind: Text, Nullable: true},
		{Name: "preview_w", Kind: Int},
		{Name: "preview_h", Kind: Int},
		{Name: "media_filename", Kind: Text, Nullable: true},
		{Name: "media_w", Kind: Int},
		{Name: "media_h", Kind: Int},
		{Name: "media_size", Kind: Int},
		{Name: "media_hash", Kind: Text, Nullable: true},
		{Name: "media_orig", Kind: Text, Nullable: true},
		{Name: "spoiler", Kind: Int},
		{Name: "deleted", Kind: Int},
		{Name: "capcode", Kind: Text},
		{Name: "email", Kind: Text, Nullable: true},
		{Name: "name", Kind: Text, Nullable: true},
		{Name: "trip", Kind: Text, Nullable: true},
		{Name: "title", Kind: Text, Nullable: true},
		{Name: "comment", Kind: Text, Nullable: true},
		{Name: "delpass", Kind: Text, Nullable: true},
		{Name: "sticky", Kind: Int},
		{Name: "locked", Kind: Int},
		{Name: "poster_hash", Kind: Text, Nullable: true},
		{Name: "poster_country", Kind: Text, Nullable: true},
		{Name: "exif", Kind: Text, Nullable: true},
	},
}

// Media is the media side table of a board. Posts reference it through the
// source-side media_id, which is only used to find the pending record; the
// destination assigns its own media_id.
var Media = &Table{
	Suffix:     "_images",
	Surrogate:  "media_id",
	NaturalKey: "media_hash",
	Columns: []Column{
		{Name: "media_id", Kind: Int},
		{Name: "media_hash", Kind: Text},
		{Name: "media", Kind: Text, Nullable: true},
		{Name: "preview_op", Kind: Text, Nullable: true},
		{Name: "preview_reply", Kind: Text, Nullable: true},
		{Name: "total", Kind: Int},
		{Name: "banned", Kind: Int},
	},
}

// Threads is the thread side table of a board.
var Threads = &Table{
	Suffix:     "_threads",
	NaturalKey: "thread_num",
	Columns: []Column{
		{Name: "thread_num", Kind: Int},
		{Name: "time_op", Kind: Int},
		{Name: "time_last", Kind: Int},
		{Name: "time_bump", Kind: Int, Nullable: true},
		{Name: "time_ghost", Kind: Int, Nullable: true},
		{Name: "time_ghost_bump", Kind: Int, Nullable: true},
		{Name: "time_last_modified", Kind: Int, Nullable: true},
		{Name: "nreplies", Kind: Int},
		{Name: "nimages", Kind: Int},
		{Name: "sticky", Kind: Int},
		{Name: "locked", Kind: Int},
	},
}

// Tables lists the three tables of a board in write order.
var Tables = []*Table{Media, Threads, Posts}
