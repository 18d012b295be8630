package mapping

const kometaJSON = `{
  "17494": {"tvdb_id": 424536, "tvdb_season": 1, "tvdb_epoffset": 0, "anilist_id": 154587, "imdb_id": "tt22248376"},
  "18301": {"tvdb_id": 424536, "tvdb_season": 1, "tvdb_epoffset": 28, "anilist_id": 182255},
  "9000":  {"tvdb_id": 424536, "tvdb_season": 0, "anilist_id": 170000, "tmdb_movie_id": 810000, "imdb_id": "tt9000000"},
  "69":    {"tvdb_id": 81797, "anilist_id": 21, "imdb_id": "tt0388629"},
  "11776": {"tmdb_movie_id": 372058, "anilist_id": 21519, "imdb_id": "tt5311514"},
  "500":   {"tvdb_id": 999, "tvdb_season": 1},
  "777":   {"anilist_id": 777777}
}`

const anidbXML = `<?xml version="1.0" encoding="UTF-8"?>
<anime-list>
  <anime anidbid="9000" tvdbid="424536" defaulttvdbseason="0" episodeoffset="" tmdbid="" imdbid="">
    <name>Frieren Specials</name>
    <mapping-list>
      <mapping anidbseason="1" tvdbseason="0">;1-2;2-3+4;3-0;</mapping>
    </mapping-list>
  </anime>
  <anime anidbid="69" tvdbid="81797" defaulttvdbseason="a" episodeoffset="" tmdbid="" imdbid="">
    <name>One Piece</name>
  </anime>
  <anime anidbid="777" tvdbid="555555" defaulttvdbseason="2" episodeoffset="12" tmdbid="" imdbid="tt0000777">
    <name>Only In AniDB</name>
  </anime>
  <anime anidbid="11776" tvdbid="movie" defaulttvdbseason="1" tmdbid="372058,1" imdbid="tt5311514">
    <name>Kimi no Na wa.</name>
  </anime>
</anime-list>`
